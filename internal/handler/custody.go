package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/splitnest/splitnest/internal/cache"
	"github.com/splitnest/splitnest/internal/custody"
	"github.com/splitnest/splitnest/internal/model"
	"github.com/splitnest/splitnest/internal/notify"
	"github.com/splitnest/splitnest/internal/store"
	ws "github.com/splitnest/splitnest/internal/websocket"
)

// streakWindowDays is how far back records are loaded when computing the
// effective-owner view; it covers the streak cap plus the yesterday lookup.
const streakWindowDays = 370

type CustodyHandler struct {
	custodyStore *store.CustodyStore
	familyStore  *store.FamilyStore
	eventStore   *store.EventStore
	cache        *cache.Store
	dispatcher   *notify.Dispatcher
	hub          *ws.Hub
	logger       *slog.Logger
}

func NewCustodyHandler(cs *store.CustodyStore, fs *store.FamilyStore, es *store.EventStore, c *cache.Store, d *notify.Dispatcher, hub *ws.Hub, logger *slog.Logger) *CustodyHandler {
	return &CustodyHandler{
		custodyStore: cs,
		familyStore:  fs,
		eventStore:   es,
		cache:        c,
		dispatcher:   d,
		hub:          hub,
		logger:       logger,
	}
}

// daycareLookup adapts the event store to the calculator's lookup. A failed
// lookup reads as "no daycare" so a storage hiccup cannot fail a derived view.
type daycareLookup struct {
	events *store.EventStore
	logger *slog.Logger
}

func (l daycareLookup) HasDaycareEvent(familyID int64, date time.Time) bool {
	has, err := l.events.HasDaycareEvent(familyID, date)
	if err != nil {
		l.logger.Warn("daycare lookup failed", "family_id", familyID, "error", err)
		return false
	}
	return has
}

// Month returns the custody records for a month. An empty month is a valid
// result and is always rendered as an empty array, never an error object.
func (h *CustodyHandler) Month(w http.ResponseWriter, r *http.Request) {
	familyID, err := parsePathInt64(r, "family_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid family id"})
		return
	}

	year, errY := strconv.Atoi(r.PathValue("year"))
	month, errM := strconv.Atoi(r.PathValue("month"))
	if errY != nil || errM != nil || month < 1 || month > 12 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid year or month"})
		return
	}

	period := fmt.Sprintf("%04d-%02d", year, month)
	records, err := h.cache.Records(r.Context(), familyID, period)
	if err != nil {
		h.logger.Error("list custody records", "family_id", familyID, "period", period, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list custody records"})
		return
	}
	if records == nil {
		records = []model.CustodyRecord{}
	}

	writeJSON(w, http.StatusOK, records)
}

type upsertRequest struct {
	Date            string  `json:"date"`
	CustodianID     int64   `json:"custodian_id"`
	ActorID         int64   `json:"actor_id"`
	HandoffDay      *bool   `json:"handoff_day"`
	HandoffTime     *string `json:"handoff_time"`
	HandoffLocation *string `json:"handoff_location"`
}

// Upsert assigns a custodian to a date, resolving handoff defaults from the
// previous day's record, and notifies the other parent out of band.
func (h *CustodyHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	familyID, err := parsePathInt64(r, "family_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid family id"})
		return
	}

	var req upsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	day, err := time.Parse(model.DateFormat, req.Date)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
		return
	}
	if req.HandoffTime != nil {
		if _, err := time.Parse(model.HandoffTimeFormat, *req.HandoffTime); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "handoff_time must be HH:MM"})
			return
		}
	}

	custodian, actorOK, err := h.checkRoster(familyID, req.CustodianID, req.ActorID)
	if err != nil {
		if err == store.ErrRosterIncomplete {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "family does not have two custodians configured"})
			return
		}
		h.logger.Error("resolve roster", "family_id", familyID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to resolve roster"})
		return
	}
	if custodian == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "custodian is not on the family roster"})
		return
	}
	if !actorOK {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "actor is not on the family roster"})
		return
	}

	// Suppress duplicate mutations for the same date while one is in flight.
	if !h.cache.BeginMutation(familyID, req.Date) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a change for this date is already in progress"})
		return
	}
	defer h.cache.EndMutation(familyID, req.Date)

	prevDate := day.AddDate(0, 0, -1).Format(model.DateFormat)
	prev, err := h.custodyStore.Get(familyID, prevDate)
	if err != nil {
		h.logger.Error("get previous record", "family_id", familyID, "date", prevDate, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to resolve handoff defaults"})
		return
	}

	handoff := custody.ResolveHandoff(day, req.CustodianID, custodian.Name, prev, req.HandoffDay, req.HandoffTime, req.HandoffLocation)

	record, err := h.custodyStore.Upsert(familyID, req.Date, req.CustodianID, req.ActorID, handoff.Day, handoff.Time, handoff.Location)
	if err != nil {
		h.logger.Error("upsert custody record", "family_id", familyID, "date", req.Date, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save custody record"})
		return
	}

	// The response record is written straight into the cache; no refetch.
	h.cache.Put(*record)
	h.hub.Broadcast(ws.CustodyUpdated(familyID, record.Date, "updated"))
	h.dispatcher.CustodyChanged(familyID, req.ActorID, req.CustodianID, record.Date)

	writeJSON(w, http.StatusOK, record)
}

type patchHandoffRequest struct {
	Date       string `json:"date"`
	HandoffDay bool   `json:"handoff_day"`
}

// PatchHandoffDay updates only the handoff flag. It cannot create a record.
func (h *CustodyHandler) PatchHandoffDay(w http.ResponseWriter, r *http.Request) {
	familyID, err := parsePathInt64(r, "family_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid family id"})
		return
	}

	var req patchHandoffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if _, err := time.Parse(model.DateFormat, req.Date); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
		return
	}

	if !h.cache.BeginMutation(familyID, req.Date) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a change for this date is already in progress"})
		return
	}
	defer h.cache.EndMutation(familyID, req.Date)

	record, err := h.custodyStore.PatchHandoffDay(familyID, req.Date, req.HandoffDay)
	if err != nil {
		h.logger.Error("patch handoff day", "family_id", familyID, "date", req.Date, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update handoff flag"})
		return
	}
	if record == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no custody record for that date"})
		return
	}

	h.cache.Put(*record)
	h.hub.Broadcast(ws.CustodyUpdated(familyID, record.Date, "updated"))

	writeJSON(w, http.StatusOK, record)
}

// Effective returns the effective owner at a moment, with the custody streak.
func (h *CustodyHandler) Effective(w http.ResponseWriter, r *http.Request) {
	familyID, err := parsePathInt64(r, "family_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid family id"})
		return
	}

	at := time.Now()
	if atStr := r.URL.Query().Get("at"); atStr != "" {
		at, err = time.Parse(time.RFC3339, atStr)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at must be RFC3339 format"})
			return
		}
	}

	calc, err := h.calculator(familyID, at)
	if err != nil {
		h.logger.Error("load records for effective view", "family_id", familyID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load custody records"})
		return
	}

	resp := struct {
		Date             string `json:"date"`
		OwnerID          *int64 `json:"owner_id"`
		EffectiveOwnerID *int64 `json:"effective_owner_id"`
		Streak           int    `json:"streak"`
		SwitchoverHour   int    `json:"switchover_hour"`
	}{
		Date:           at.Format(model.DateFormat),
		Streak:         calc.Streak(at),
		SwitchoverHour: calc.SwitchoverHour(at),
	}
	if owner, ok := calc.Owner(at); ok {
		resp.OwnerID = &owner
	}
	if effective, ok := calc.EffectiveOwner(at); ok {
		resp.EffectiveOwnerID = &effective
	}

	writeJSON(w, http.StatusOK, resp)
}

// Share returns each custodian's percentage of a displayed date range. The
// range is the rendered one, padding days included.
func (h *CustodyHandler) Share(w http.ResponseWriter, r *http.Request) {
	familyID, err := parsePathInt64(r, "family_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid family id"})
		return
	}

	start, errS := time.Parse(model.DateFormat, r.URL.Query().Get("start"))
	end, errE := time.Parse(model.DateFormat, r.URL.Query().Get("end"))
	if errS != nil || errE != nil || end.Before(start) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "start and end must be YYYY-MM-DD with start <= end"})
		return
	}

	records, err := h.custodyStore.GetRange(familyID, start.Format(model.DateFormat), end.Format(model.DateFormat))
	if err != nil {
		h.logger.Error("load records for share", "family_id", familyID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load custody records"})
		return
	}

	calc := custody.NewCalculator(familyID, records, daycareLookup{events: h.eventStore, logger: h.logger}, h.logger)

	shares := make(map[string]float64)
	for owner, pct := range calc.Share(start, end) {
		shares[strconv.FormatInt(owner, 10)] = pct
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"start":  start.Format(model.DateFormat),
		"end":    end.Format(model.DateFormat),
		"shares": shares,
	})
}

// calculator loads the record window around a reference time and indexes it.
func (h *CustodyHandler) calculator(familyID int64, at time.Time) (*custody.Calculator, error) {
	start := at.AddDate(0, 0, -streakWindowDays).Format(model.DateFormat)
	end := at.AddDate(0, 0, 1).Format(model.DateFormat)

	records, err := h.custodyStore.GetRange(familyID, start, end)
	if err != nil {
		return nil, err
	}
	return custody.NewCalculator(familyID, records, daycareLookup{events: h.eventStore, logger: h.logger}, h.logger), nil
}

// checkRoster resolves the family's custodians and reports whether the given
// custodian and actor are on the roster.
func (h *CustodyHandler) checkRoster(familyID, custodianID, actorID int64) (*model.FamilyMember, bool, error) {
	custodians, err := h.familyStore.Custodians(familyID)
	if err != nil {
		return nil, false, err
	}

	var custodian *model.FamilyMember
	actorOK := false
	for i := range custodians {
		if custodians[i].ID == custodianID {
			custodian = &custodians[i]
		}
		if custodians[i].ID == actorID {
			actorOK = true
		}
	}
	return custodian, actorOK, nil
}
