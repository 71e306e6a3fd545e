package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/bramble/internal/backup"
	"github.com/dukerupert/bramble/internal/email"
	"github.com/dukerupert/bramble/internal/fraud"
	"github.com/dukerupert/bramble/internal/handler"
	"github.com/dukerupert/bramble/internal/middleware"
	"github.com/dukerupert/bramble/internal/notify"
	"github.com/dukerupert/bramble/internal/referral"
	"github.com/dukerupert/bramble/internal/store"
	ws "github.com/dukerupert/bramble/internal/websocket"
)

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	bookingH      *handler.BookingHandler
	referralH     *handler.ReferralHandler
	creditH       *handler.CreditHandler
	settingsH     *handler.SettingsHandler
	customerH     *handler.CustomerHandler
	rateLimiter   *middleware.RateLimiter
	orchestrator  *referral.Orchestrator
	backupManager *backup.Manager
	notifier      *notify.Dispatcher
	adminToken    string
	logger        *slog.Logger
}

func New(db *sql.DB, emailClient *email.Client, adminToken string, backupCfg backup.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	customerStore := store.NewCustomerStore(db)
	bookingStore := store.NewBookingStore(db)
	referralStore := store.NewReferralStore(db)
	creditStore := store.NewCreditStore(db)
	settingsStore := store.NewSettingsStore(db)

	detector := fraud.NewDetector(bookingStore)
	validator := referral.NewValidator(settingsStore, customerStore, detector)

	notifier := notify.NewDispatcher(emailClient, logger.With("component", "notify"))

	orchestrator := referral.NewOrchestrator(
		settingsStore,
		bookingStore,
		referralStore,
		customerStore,
		notifier,
		hub,
		logger.With("component", "orchestrator"),
	)

	backupMgr := backup.NewManager(backupCfg, db, logger.With("component", "backup"))

	return &Server{
		db:            db,
		hub:           hub,
		bookingH:      handler.NewBookingHandler(bookingStore, customerStore, referralStore, validator, hub, logger.With("component", "booking")),
		referralH:     handler.NewReferralHandler(referralStore, logger.With("component", "referral")),
		creditH:       handler.NewCreditHandler(creditStore, hub, logger.With("component", "credit")),
		settingsH:     handler.NewSettingsHandler(settingsStore, logger.With("component", "settings")),
		customerH:     handler.NewCustomerHandler(customerStore, logger.With("component", "customer")),
		rateLimiter:   middleware.NewRateLimiter(),
		orchestrator:  orchestrator,
		backupManager: backupMgr,
		notifier:      notifier,
		adminToken:    adminToken,
		logger:        logger,
	}
}

// Orchestrator returns the crediting orchestrator for lifecycle management.
func (s *Server) Orchestrator() *referral.Orchestrator {
	return s.orchestrator
}

// BackupManager returns the backup manager for lifecycle management.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// Notifier returns the notification dispatcher so shutdown can drain it.
func (s *Server) Notifier() *notify.Dispatcher {
	return s.notifier
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes: booking intake from the scheduling system plus health.
	// Intake is rate limited per source IP since it accepts referral codes.
	outerMux.HandleFunc("POST /api/bookings", s.rateLimitedHandler(s.bookingH.Create))
	outerMux.HandleFunc("POST /api/bookings/{id}/complete", s.bookingH.Complete)
	outerMux.HandleFunc("POST /api/bookings/{id}/cancel", s.bookingH.Cancel)
	outerMux.HandleFunc("GET /api/bookings/{id}", s.bookingH.Get)
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Admin routes behind bearer auth
	adminMux := http.NewServeMux()
	s.registerAdminRoutes(adminMux)

	authMiddleware := middleware.AdminAuth(s.adminToken)
	outerMux.Handle("/api/admin/", http.StripPrefix("/api/admin", authMiddleware(adminMux)))
	outerMux.Handle("GET /ws", authMiddleware(ws.HandleWebSocket(s.hub)))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) backupStatusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.backupManager.Status())
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimitByIP(s.rateLimiter, 30, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerAdminRoutes(mux *http.ServeMux) {
	// Referral reporting
	mux.HandleFunc("GET /referrals", s.referralH.List)
	mux.HandleFunc("GET /referrals/stats", s.referralH.Stats)
	mux.HandleFunc("GET /referrals/leaderboard", s.referralH.Leaderboard)

	// Credit accounts
	mux.HandleFunc("GET /customers/{id}", s.customerH.Get)
	mux.HandleFunc("GET /customers/{id}/credits", s.creditH.GetBalance)
	mux.HandleFunc("GET /customers/{id}/credits/transactions", s.creditH.ListTransactions)
	mux.HandleFunc("POST /customers/{id}/credits/use", s.creditH.Use)
	mux.HandleFunc("POST /customers/{id}/credits/adjust", s.creditH.Adjust)

	// Program settings
	mux.HandleFunc("GET /settings/referral", s.settingsH.GetReferral)
	mux.HandleFunc("PUT /settings/referral", s.settingsH.UpdateReferral)

	// Backup status
	mux.HandleFunc("GET /backup", s.backupStatusHandler)
}
