package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/splitnest/splitnest/internal/model"
	"github.com/splitnest/splitnest/internal/store"
)

var hexColorRegexp = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type FamilyHandler struct {
	store  *store.FamilyStore
	logger *slog.Logger
}

func NewFamilyHandler(s *store.FamilyStore, logger *slog.Logger) *FamilyHandler {
	return &FamilyHandler{store: s, logger: logger}
}

func (h *FamilyHandler) CreateFamily(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	family, err := h.store.CreateFamily(req.Name)
	if err != nil {
		h.logger.Error("create family", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create family"})
		return
	}

	writeJSON(w, http.StatusCreated, family)
}

func (h *FamilyHandler) CreateMember(w http.ResponseWriter, r *http.Request) {
	familyID, err := parsePathInt64(r, "family_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid family id"})
		return
	}

	family, err := h.store.GetFamily(familyID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get family"})
		return
	}
	if family == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "family not found"})
		return
	}

	var req struct {
		Name        string `json:"name"`
		Color       string `json:"color"`
		AvatarEmoji string `json:"avatar_emoji"`
		IsCustodian bool   `json:"is_custodian"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	if req.Color == "" {
		req.Color = "#3B82F6"
	}
	if !hexColorRegexp.MatchString(req.Color) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "color must be a hex color (e.g. #FF0000)"})
		return
	}

	member, err := h.store.CreateMember(familyID, req.Name, req.Color, req.AvatarEmoji, req.IsCustodian)
	if err != nil {
		h.logger.Error("create family member", "family_id", familyID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create family member"})
		return
	}

	writeJSON(w, http.StatusCreated, member)
}

func (h *FamilyHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	familyID, err := parsePathInt64(r, "family_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid family id"})
		return
	}

	members, err := h.store.ListMembers(familyID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list family members"})
		return
	}
	if members == nil {
		members = []model.FamilyMember{}
	}
	writeJSON(w, http.StatusOK, members)
}

// Custodians returns the family's two designated custodians.
func (h *FamilyHandler) Custodians(w http.ResponseWriter, r *http.Request) {
	familyID, err := parsePathInt64(r, "family_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid family id"})
		return
	}

	custodians, err := h.store.Custodians(familyID)
	if err != nil {
		if err == store.ErrRosterIncomplete {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "family does not have two custodians configured"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list custodians"})
		return
	}

	writeJSON(w, http.StatusOK, custodians)
}

// SetCustodian flips the custodian flag on a member.
func (h *FamilyHandler) SetCustodian(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req struct {
		IsCustodian bool `json:"is_custodian"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	member, err := h.store.SetCustodian(id, req.IsCustodian)
	if err != nil {
		h.logger.Error("set custodian flag", "member_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update member"})
		return
	}
	if member == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "family member not found"})
		return
	}

	writeJSON(w, http.StatusOK, member)
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func parsePathInt64(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
