// Package custody implements the scheduling core: handoff default
// resolution on write, and the derived whose-day-is-it views (effective
// owner, streak, share) used by clients.
package custody

import (
	"strings"
	"time"

	"github.com/splitnest/splitnest/internal/model"
)

// Default handoff metadata stored on a transition day. These are the values
// written to the record; they are not the switchover hour used to decide when
// custody actually transfers (see effective.go), even though both branch on
// weekend-vs-weekday.
const (
	WeekdayHandoffTime     = "17:00"
	WeekendHandoffTime     = "12:00"
	WeekdayHandoffLocation = "daycare"
)

// Handoff holds the resolved handoff fields for a custody record.
type Handoff struct {
	Day      bool
	Time     *string
	Location *string
}

// ResolveHandoff computes the handoff fields stored by an upsert. It is a
// pure function of the new assignment, the date, and the previous day's
// record.
//
// Caller-supplied fields win: an explicit handoff_day is stored as given, and
// an explicit handoff_time marks the day as a handoff even without the flag.
// Otherwise the previous day's record decides: a differing custodian makes a
// handoff day with weekday/weekend defaults for whichever of time/location is
// still unset, and a matching custodian (or no predecessor at all, as for the
// first record in a family's history) means no transition.
func ResolveHandoff(date time.Time, custodianID int64, custodianName string, prev *model.CustodyRecord, explicitDay *bool, explicitTime, explicitLocation *string) Handoff {
	if explicitDay != nil {
		return Handoff{Day: *explicitDay, Time: explicitTime, Location: explicitLocation}
	}

	if explicitTime != nil {
		return Handoff{Day: true, Time: explicitTime, Location: explicitLocation}
	}

	if prev == nil || prev.CustodianID == custodianID {
		return Handoff{}
	}

	h := Handoff{Day: true, Location: explicitLocation}
	if isWeekend(date) {
		t := WeekendHandoffTime
		h.Time = &t
		if h.Location == nil {
			loc := homeLocation(custodianName)
			h.Location = &loc
		}
	} else {
		t := WeekdayHandoffTime
		h.Time = &t
		if h.Location == nil {
			loc := WeekdayHandoffLocation
			h.Location = &loc
		}
	}
	return h
}

func isWeekend(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// homeLocation builds the weekend default location from the receiving
// custodian's display name, e.g. "bob's home".
func homeLocation(custodianName string) string {
	first := custodianName
	if fields := strings.Fields(custodianName); len(fields) > 0 {
		first = fields[0]
	}
	return strings.ToLower(first) + "'s home"
}
