package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/splitnest/splitnest/internal/cache"
	"github.com/splitnest/splitnest/internal/database"
	"github.com/splitnest/splitnest/internal/model"
	"github.com/splitnest/splitnest/internal/notify"
	"github.com/splitnest/splitnest/internal/store"
	ws "github.com/splitnest/splitnest/internal/websocket"
)

type custodyTestEnv struct {
	mux      *http.ServeMux
	db       *sql.DB
	familyID int64
	aliceID  int64
	bobID    int64
}

func setupCustodyHandler(t *testing.T) *custodyTestEnv {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	custodyStore := store.NewCustodyStore(db)
	familyStore := store.NewFamilyStore(db)
	eventStore := store.NewEventStore(db)
	pushStore := store.NewPushStore(db)

	family, err := familyStore.CreateFamily("Test Family")
	if err != nil {
		t.Fatalf("failed to create family: %v", err)
	}
	alice, err := familyStore.CreateMember(family.ID, "Alice", "#ff0000", "🦊", true)
	if err != nil {
		t.Fatalf("failed to create member: %v", err)
	}
	bob, err := familyStore.CreateMember(family.ID, "Bob", "#0000ff", "🐻", true)
	if err != nil {
		t.Fatalf("failed to create member: %v", err)
	}

	recordCache := cache.New(func(ctx context.Context, familyID int64, period string) ([]model.CustodyRecord, error) {
		return custodyStore.GetRange(familyID, period+"-01", period+"-31")
	}, logger)
	dispatcher := notify.NewDispatcher(nil, pushStore, familyStore, logger)
	hub := ws.NewHub(logger)

	h := NewCustodyHandler(custodyStore, familyStore, eventStore, recordCache, dispatcher, hub, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/families/{family_id}/custody/{year}/{month}", h.Month)
	mux.HandleFunc("POST /api/families/{family_id}/custody", h.Upsert)
	mux.HandleFunc("PATCH /api/families/{family_id}/custody/handoff-day", h.PatchHandoffDay)
	mux.HandleFunc("GET /api/families/{family_id}/custody/effective", h.Effective)
	mux.HandleFunc("GET /api/families/{family_id}/custody/share", h.Share)

	return &custodyTestEnv{
		mux:      mux,
		db:       db,
		familyID: family.ID,
		aliceID:  alice.ID,
		bobID:    bob.ID,
	}
}

func (e *custodyTestEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func TestMonthEmptyIsArray(t *testing.T) {
	env := setupCustodyHandler(t)

	rec := env.do(t, "GET", fmt.Sprintf("/api/families/%d/custody/2025/7", env.familyID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want empty array", got)
	}
}

func TestMonthInvalidMonth(t *testing.T) {
	env := setupCustodyHandler(t)

	rec := env.do(t, "GET", fmt.Sprintf("/api/families/%d/custody/2025/13", env.familyID), "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUpsertResolvesWeekdayHandoff(t *testing.T) {
	env := setupCustodyHandler(t)

	// Monday belongs to Alice.
	rec := env.do(t, "POST", fmt.Sprintf("/api/families/%d/custody", env.familyID),
		fmt.Sprintf(`{"date":"2025-07-07","custodian_id":%d,"actor_id":%d}`, env.aliceID, env.aliceID))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var first model.CustodyRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &first); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if first.HandoffDay {
		t.Error("HandoffDay = true on first record, want false")
	}

	// Tuesday goes to Bob: weekday defaults apply.
	rec = env.do(t, "POST", fmt.Sprintf("/api/families/%d/custody", env.familyID),
		fmt.Sprintf(`{"date":"2025-07-08","custodian_id":%d,"actor_id":%d}`, env.bobID, env.aliceID))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var second model.CustodyRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &second); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !second.HandoffDay {
		t.Error("HandoffDay = false on custodian change, want true")
	}
	if second.HandoffTime == nil || *second.HandoffTime != "17:00" {
		t.Errorf("HandoffTime = %v, want 17:00", second.HandoffTime)
	}
	if second.HandoffLocation == nil || *second.HandoffLocation != "daycare" {
		t.Errorf("HandoffLocation = %v, want daycare", second.HandoffLocation)
	}
}

func TestUpsertRejectsUnknownCustodian(t *testing.T) {
	env := setupCustodyHandler(t)

	rec := env.do(t, "POST", fmt.Sprintf("/api/families/%d/custody", env.familyID),
		fmt.Sprintf(`{"date":"2025-07-07","custodian_id":999,"actor_id":%d}`, env.aliceID))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for custodian off the roster", rec.Code)
	}
}

func TestUpsertRejectsBadHandoffTime(t *testing.T) {
	env := setupCustodyHandler(t)

	rec := env.do(t, "POST", fmt.Sprintf("/api/families/%d/custody", env.familyID),
		fmt.Sprintf(`{"date":"2025-07-07","custodian_id":%d,"actor_id":%d,"handoff_time":"5pm"}`, env.aliceID, env.aliceID))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for malformed handoff_time", rec.Code)
	}
}

func TestUpsertIncompleteRoster(t *testing.T) {
	env := setupCustodyHandler(t)

	families := store.NewFamilyStore(env.db)
	if _, err := families.SetCustodian(env.bobID, false); err != nil {
		t.Fatalf("SetCustodian() error = %v", err)
	}

	rec := env.do(t, "POST", fmt.Sprintf("/api/families/%d/custody", env.familyID),
		fmt.Sprintf(`{"date":"2025-07-07","custodian_id":%d,"actor_id":%d}`, env.aliceID, env.aliceID))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 with incomplete roster", rec.Code)
	}
}

func TestPatchHandoffDayMissing(t *testing.T) {
	env := setupCustodyHandler(t)

	rec := env.do(t, "PATCH", fmt.Sprintf("/api/families/%d/custody/handoff-day", env.familyID),
		`{"date":"2025-07-07","handoff_day":true}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when no record exists", rec.Code)
	}
}

func TestPatchHandoffDay(t *testing.T) {
	env := setupCustodyHandler(t)

	rec := env.do(t, "POST", fmt.Sprintf("/api/families/%d/custody", env.familyID),
		fmt.Sprintf(`{"date":"2025-07-07","custodian_id":%d,"actor_id":%d,"handoff_day":true,"handoff_time":"09:00"}`, env.aliceID, env.aliceID))
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, "PATCH", fmt.Sprintf("/api/families/%d/custody/handoff-day", env.familyID),
		`{"date":"2025-07-07","handoff_day":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d: %s", rec.Code, rec.Body.String())
	}

	var patched model.CustodyRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &patched); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if patched.HandoffDay {
		t.Error("HandoffDay = true after patch, want false")
	}
	if patched.HandoffTime == nil || *patched.HandoffTime != "09:00" {
		t.Errorf("HandoffTime = %v, want 09:00 preserved", patched.HandoffTime)
	}
}

func TestEffectiveView(t *testing.T) {
	env := setupCustodyHandler(t)

	// Thursday Alice, Friday Bob.
	for _, c := range []struct {
		date        string
		custodianID int64
	}{
		{"2025-07-03", env.aliceID},
		{"2025-07-04", env.bobID},
	} {
		rec := env.do(t, "POST", fmt.Sprintf("/api/families/%d/custody", env.familyID),
			fmt.Sprintf(`{"date":"%s","custodian_id":%d,"actor_id":%d}`, c.date, c.custodianID, env.aliceID))
		if rec.Code != http.StatusOK {
			t.Fatalf("upsert status = %d: %s", rec.Code, rec.Body.String())
		}
	}

	rec := env.do(t, "GET", fmt.Sprintf("/api/families/%d/custody/effective?at=2025-07-04T09:00:00Z", env.familyID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		OwnerID          *int64 `json:"owner_id"`
		EffectiveOwnerID *int64 `json:"effective_owner_id"`
		SwitchoverHour   int    `json:"switchover_hour"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.OwnerID == nil || *resp.OwnerID != env.bobID {
		t.Errorf("owner_id = %v, want %d", resp.OwnerID, env.bobID)
	}
	if resp.EffectiveOwnerID == nil || *resp.EffectiveOwnerID != env.aliceID {
		t.Errorf("effective_owner_id = %v, want %d before switchover", resp.EffectiveOwnerID, env.aliceID)
	}
	if resp.SwitchoverHour != 17 {
		t.Errorf("switchover_hour = %d, want 17 on a weekday", resp.SwitchoverHour)
	}
}

func TestShareView(t *testing.T) {
	env := setupCustodyHandler(t)

	for _, date := range []string{"2025-07-01", "2025-07-02", "2025-07-03"} {
		rec := env.do(t, "POST", fmt.Sprintf("/api/families/%d/custody", env.familyID),
			fmt.Sprintf(`{"date":"%s","custodian_id":%d,"actor_id":%d}`, date, env.aliceID, env.aliceID))
		if rec.Code != http.StatusOK {
			t.Fatalf("upsert status = %d: %s", rec.Code, rec.Body.String())
		}
	}

	rec := env.do(t, "GET", fmt.Sprintf("/api/families/%d/custody/share?start=2025-07-01&end=2025-07-04", env.familyID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Shares map[string]float64 `json:"shares"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	key := fmt.Sprintf("%d", env.aliceID)
	if got := resp.Shares[key]; got != 75 {
		t.Errorf("shares[%s] = %v, want 75", key, got)
	}
}

func TestShareRejectsInvertedRange(t *testing.T) {
	env := setupCustodyHandler(t)

	rec := env.do(t, "GET", fmt.Sprintf("/api/families/%d/custody/share?start=2025-07-04&end=2025-07-01", env.familyID), "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for inverted range", rec.Code)
	}
}
