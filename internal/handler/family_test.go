package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/splitnest/splitnest/internal/database"
	"github.com/splitnest/splitnest/internal/model"
	"github.com/splitnest/splitnest/internal/store"
)

func setupFamilyHandler(t *testing.T) *http.ServeMux {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewFamilyHandler(store.NewFamilyStore(db), logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/families", h.CreateFamily)
	mux.HandleFunc("POST /api/families/{family_id}/members", h.CreateMember)
	mux.HandleFunc("GET /api/families/{family_id}/members", h.ListMembers)
	mux.HandleFunc("GET /api/families/{family_id}/custodians", h.Custodians)
	mux.HandleFunc("PUT /api/members/{id}/custodian", h.SetCustodian)
	return mux
}

func doRequest(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func createTestFamily(t *testing.T, mux *http.ServeMux) int64 {
	t.Helper()
	rec := doRequest(t, mux, "POST", "/api/families", `{"name":"The Does"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create family status = %d: %s", rec.Code, rec.Body.String())
	}
	var family model.Family
	if err := json.Unmarshal(rec.Body.Bytes(), &family); err != nil {
		t.Fatalf("failed to decode family: %v", err)
	}
	return family.ID
}

func TestCreateFamilyValidation(t *testing.T) {
	mux := setupFamilyHandler(t)

	rec := doRequest(t, mux, "POST", "/api/families", `{"name":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for blank name", rec.Code)
	}
}

func TestCreateMemberValidatesColor(t *testing.T) {
	mux := setupFamilyHandler(t)
	familyID := createTestFamily(t, mux)

	rec := doRequest(t, mux, "POST", fmt.Sprintf("/api/families/%d/members", familyID),
		`{"name":"Alice","color":"red"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for non-hex color", rec.Code)
	}

	rec = doRequest(t, mux, "POST", fmt.Sprintf("/api/families/%d/members", familyID),
		`{"name":"Alice","color":"#FF0000","is_custodian":true}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var member model.FamilyMember
	if err := json.Unmarshal(rec.Body.Bytes(), &member); err != nil {
		t.Fatalf("failed to decode member: %v", err)
	}
	if !member.IsCustodian {
		t.Error("IsCustodian = false, want true")
	}
}

func TestCreateMemberMissingFamily(t *testing.T) {
	mux := setupFamilyHandler(t)

	rec := doRequest(t, mux, "POST", "/api/families/999/members", `{"name":"Alice"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for missing family", rec.Code)
	}
}

func TestCustodiansEndpoint(t *testing.T) {
	mux := setupFamilyHandler(t)
	familyID := createTestFamily(t, mux)

	// One custodian: the roster is incomplete.
	rec := doRequest(t, mux, "POST", fmt.Sprintf("/api/families/%d/members", familyID),
		`{"name":"Alice","is_custodian":true}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create member status = %d", rec.Code)
	}

	rec = doRequest(t, mux, "GET", fmt.Sprintf("/api/families/%d/custodians", familyID), "")
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 with one custodian", rec.Code)
	}

	rec = doRequest(t, mux, "POST", fmt.Sprintf("/api/families/%d/members", familyID),
		`{"name":"Bob","is_custodian":true}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create member status = %d", rec.Code)
	}

	rec = doRequest(t, mux, "GET", fmt.Sprintf("/api/families/%d/custodians", familyID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 with two custodians", rec.Code)
	}
	var custodians []model.FamilyMember
	if err := json.Unmarshal(rec.Body.Bytes(), &custodians); err != nil {
		t.Fatalf("failed to decode custodians: %v", err)
	}
	if len(custodians) != 2 {
		t.Errorf("got %d custodians, want 2", len(custodians))
	}
}

func TestSetCustodianMissing(t *testing.T) {
	mux := setupFamilyHandler(t)

	rec := doRequest(t, mux, "PUT", "/api/members/999/custodian", `{"is_custodian":true}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for missing member", rec.Code)
	}
}
