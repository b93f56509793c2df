// Package notify delivers out-of-band custody change notices to the parent
// who did not make the change. Dispatch is fire-and-forget: a slow or failing
// push transport never delays or fails the custody write that triggered it.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/splitnest/splitnest/internal/model"
	"github.com/splitnest/splitnest/internal/push"
	"github.com/splitnest/splitnest/internal/store"
)

const sendTimeout = 5 * time.Second

// Transport is the opaque push delivery mechanism.
type Transport interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload push.Payload) error
}

type Dispatcher struct {
	transport Transport
	pushStore *store.PushStore
	families  *store.FamilyStore
	logger    *slog.Logger
	wg        sync.WaitGroup
}

func NewDispatcher(transport Transport, pushStore *store.PushStore, families *store.FamilyStore, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		transport: transport,
		pushStore: pushStore,
		families:  families,
		logger:    logger,
	}
}

// CustodyChanged notifies the non-acting custodian that the record for a
// date changed. Runs detached from the caller; all failures are logged and
// swallowed.
func (d *Dispatcher) CustodyChanged(familyID, actorID, custodianID int64, date string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		d.dispatch(ctx, familyID, actorID, custodianID, date)
	}()
}

// Wait blocks until all in-flight dispatches finish. Used on shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) dispatch(ctx context.Context, familyID, actorID, custodianID int64, date string) {
	if d.transport == nil {
		// Push is not configured; nothing to deliver.
		return
	}

	custodians, err := d.families.Custodians(familyID)
	if err != nil {
		d.logger.Warn("notify: resolve roster", "family_id", familyID, "error", err)
		return
	}

	var recipient *model.FamilyMember
	var actorName, custodianName string
	actorOnRoster := false
	for i := range custodians {
		m := &custodians[i]
		if m.ID == actorID {
			actorOnRoster = true
			actorName = m.Name
		} else {
			recipient = m
		}
		if m.ID == custodianID {
			custodianName = m.Name
		}
	}
	if !actorOnRoster || recipient == nil {
		// The change did not come from a roster custodian, so there is no
		// single other parent to tell.
		d.logger.Warn("notify: actor is not a custodian", "family_id", familyID, "actor_id", actorID)
		return
	}

	subs, err := d.pushStore.ListByMember(recipient.ID)
	if err != nil {
		d.logger.Warn("notify: list subscriptions", "member_id", recipient.ID, "error", err)
		return
	}
	if len(subs) == 0 {
		d.logger.Debug("notify: no push destination", "member_id", recipient.ID)
		return
	}

	payload := push.Payload{
		Title: "Custody updated",
		Body:  buildBody(actorName, custodianName, date),
		URL:   "/calendar",
		Tag:   fmt.Sprintf("custody-%s", date),
	}

	for i := range subs {
		if err := d.transport.Send(ctx, &subs[i], payload); err != nil {
			if errors.Is(err, push.ErrExpired) {
				if err := d.pushStore.DeleteByEndpoint(subs[i].Endpoint); err != nil {
					d.logger.Warn("notify: prune expired subscription", "error", err)
				}
				continue
			}
			d.logger.Warn("notify: send", "member_id", recipient.ID, "error", err)
		}
	}
}

func buildBody(actorName, custodianName, date string) string {
	formatted := date
	if day, err := time.Parse(model.DateFormat, date); err == nil {
		formatted = day.Format("Mon, Jan 2")
	}
	if actorName == "" {
		return fmt.Sprintf("%s now has %s", custodianName, formatted)
	}
	return fmt.Sprintf("%s set %s as custodian for %s", actorName, custodianName, formatted)
}
