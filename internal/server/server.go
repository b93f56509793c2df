package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/splitnest/splitnest/internal/backup"
	"github.com/splitnest/splitnest/internal/cache"
	"github.com/splitnest/splitnest/internal/handler"
	"github.com/splitnest/splitnest/internal/middleware"
	"github.com/splitnest/splitnest/internal/model"
	"github.com/splitnest/splitnest/internal/notify"
	"github.com/splitnest/splitnest/internal/push"
	"github.com/splitnest/splitnest/internal/store"
	ws "github.com/splitnest/splitnest/internal/websocket"
)

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	custodyH      *handler.CustodyHandler
	familyH       *handler.FamilyHandler
	pushH         *handler.PushHandler
	dispatcher    *notify.Dispatcher
	backupManager *backup.Manager
	rateLimiter   *middleware.RateLimiter
	logger        *slog.Logger
}

func New(db *sql.DB, pushCfg push.Config, backupCfg backup.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	familyStore := store.NewFamilyStore(db)
	custodyStore := store.NewCustodyStore(db)
	eventStore := store.NewEventStore(db)
	pushStore := store.NewPushStore(db)

	custodyCache := cache.New(func(ctx context.Context, familyID int64, period string) ([]model.CustodyRecord, error) {
		// Dates are YYYY-MM-DD strings; "-31" is a safe upper bound for any month.
		return custodyStore.GetRange(familyID, period+"-01", period+"-31")
	}, logger.With("component", "cache"))

	var pushSvc *push.Service
	var pushH *handler.PushHandler
	var transport notify.Transport
	if pushCfg.VAPIDPublicKey != "" && pushCfg.VAPIDPrivateKey != "" {
		pushSvc = push.NewService(pushCfg.VAPIDPublicKey, pushCfg.VAPIDPrivateKey)
		pushH = handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push_handler"))
		transport = pushSvc
	}

	dispatcher := notify.NewDispatcher(transport, pushStore, familyStore, logger.With("component", "notify"))
	backupMgr := backup.NewManager(backupCfg, db, logger.With("component", "backup"))

	return &Server{
		db:            db,
		hub:           hub,
		custodyH:      handler.NewCustodyHandler(custodyStore, familyStore, eventStore, custodyCache, dispatcher, hub, logger.With("component", "custody")),
		familyH:       handler.NewFamilyHandler(familyStore, logger.With("component", "family")),
		pushH:         pushH,
		dispatcher:    dispatcher,
		backupManager: backupMgr,
		rateLimiter:   middleware.NewRateLimiter(),
		logger:        logger,
	}
}

// Dispatcher returns the notification dispatcher, for shutdown draining.
func (s *Server) Dispatcher() *notify.Dispatcher {
	return s.dispatcher
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	// Family / roster
	mux.HandleFunc("POST /api/families", s.familyH.CreateFamily)
	mux.HandleFunc("POST /api/families/{family_id}/members", s.familyH.CreateMember)
	mux.HandleFunc("GET /api/families/{family_id}/members", s.familyH.ListMembers)
	mux.HandleFunc("GET /api/families/{family_id}/custodians", s.familyH.Custodians)
	mux.HandleFunc("PUT /api/members/{id}/custodian", s.familyH.SetCustodian)

	// Custody
	mux.HandleFunc("GET /api/families/{family_id}/custody/{year}/{month}", s.custodyH.Month)
	mux.HandleFunc("POST /api/families/{family_id}/custody", s.rateLimited(s.custodyH.Upsert))
	mux.HandleFunc("PATCH /api/families/{family_id}/custody/handoff-day", s.rateLimited(s.custodyH.PatchHandoffDay))
	mux.HandleFunc("GET /api/families/{family_id}/custody/effective", s.custodyH.Effective)
	mux.HandleFunc("GET /api/families/{family_id}/custody/share", s.custodyH.Share)

	// Push subscriptions
	if s.pushH != nil {
		mux.HandleFunc("POST /api/families/{family_id}/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("DELETE /api/families/{family_id}/push/subscriptions/{id}", s.pushH.Unsubscribe)
		mux.HandleFunc("GET /api/members/{id}/push/subscriptions", s.pushH.ListByMember)
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
	}

	// WebSocket sync
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "websocket")))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 30, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
