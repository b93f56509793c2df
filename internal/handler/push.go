package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/splitnest/splitnest/internal/model"
	"github.com/splitnest/splitnest/internal/push"
	"github.com/splitnest/splitnest/internal/store"
)

type PushHandler struct {
	store   *store.PushStore
	service *push.Service
	logger  *slog.Logger
}

func NewPushHandler(s *store.PushStore, svc *push.Service, logger *slog.Logger) *PushHandler {
	return &PushHandler{store: s, service: svc, logger: logger}
}

type subscribeRequest struct {
	MemberID   int64  `json:"member_id"`
	Endpoint   string `json:"endpoint"`
	P256dhKey  string `json:"p256dh_key"`
	AuthKey    string `json:"auth_key"`
	DeviceName string `json:"device_name"`
}

// Subscribe registers a push destination for a family member.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	familyID, err := parsePathInt64(r, "family_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid family id"})
		return
	}

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Endpoint = strings.TrimSpace(req.Endpoint)
	if req.Endpoint == "" || req.P256dhKey == "" || req.AuthKey == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "endpoint, p256dh_key and auth_key are required"})
		return
	}

	sub, err := h.store.CreateSubscription(familyID, req.MemberID, req.Endpoint, req.P256dhKey, req.AuthKey, req.DeviceName)
	if err != nil {
		h.logger.Error("create push subscription", "family_id", familyID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create subscription"})
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

// Unsubscribe removes a push destination.
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	familyID, err := parsePathInt64(r, "family_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid family id"})
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	if err := h.store.DeleteSubscription(id, familyID); err != nil {
		h.logger.Error("delete push subscription", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete subscription"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListByMember returns a member's registered push destinations.
func (h *PushHandler) ListByMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	subs, err := h.store.ListByMember(memberID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list subscriptions"})
		return
	}
	if subs == nil {
		subs = []model.PushSubscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// VAPIDKey returns the public key clients need to subscribe.
func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.service.VAPIDPublicKey()})
}
