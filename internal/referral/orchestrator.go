package referral

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/bramble/internal/code"
	"github.com/dukerupert/bramble/internal/model"
	"github.com/dukerupert/bramble/internal/notify"
	"github.com/dukerupert/bramble/internal/store"
	"github.com/dukerupert/bramble/internal/websocket"
)

const (
	defaultInterval     = 60 * time.Second
	defaultCodeInterval = 10 * time.Minute
)

// Orchestrator is the periodic process that advances referrals through their
// lifecycle and issues codes to newly eligible customers. It must run in at
// most one instance per deployment; within a tick, idempotency comes from the
// stores' conditional claims, not from locks.
type Orchestrator struct {
	mu        sync.RWMutex
	settings  *store.SettingsStore
	bookings  *store.BookingStore
	referrals *store.ReferralStore
	customers *store.CustomerStore
	notifier  *notify.Dispatcher
	hub       *websocket.Hub
	logger    *slog.Logger

	interval     time.Duration
	codeInterval time.Duration
	lastCodeScan time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

func NewOrchestrator(
	settings *store.SettingsStore,
	bookings *store.BookingStore,
	referrals *store.ReferralStore,
	customers *store.CustomerStore,
	notifier *notify.Dispatcher,
	hub *websocket.Hub,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		settings:     settings,
		bookings:     bookings,
		referrals:    referrals,
		customers:    customers,
		notifier:     notifier,
		hub:          hub,
		logger:       logger,
		interval:     defaultInterval,
		codeInterval: defaultCodeInterval,
	}
}

// Start begins the orchestrator loop.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	ctx, o.cancel = context.WithCancel(ctx)
	o.done = make(chan struct{})
	o.mu.Unlock()

	go func() {
		defer close(o.done)
		ticker := time.NewTicker(o.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				o.Tick(time.Now().UTC())
			}
		}
	}()
}

// Stop gracefully stops the orchestrator.
func (o *Orchestrator) Stop() {
	o.mu.RLock()
	cancel := o.cancel
	done := o.done
	o.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Tick runs one scan. Settings are loaded fresh each time; when the program
// is disabled the whole tick is skipped. Per-item errors are logged and the
// scan continues, so one bad row never blocks the rest.
func (o *Orchestrator) Tick(now time.Time) {
	cfg, err := o.settings.GetReferralSettings()
	if err != nil {
		o.logger.Error("load referral settings", "error", err)
		return
	}
	if !cfg.Enabled {
		return
	}

	o.processCompletedBookings(cfg, now)

	if now.Sub(o.lastCodeScan) >= o.codeInterval {
		o.issueCodes(cfg)
		o.lastCodeScan = now
	}
}

// processCompletedBookings advances referrals for bookings that reached
// completed. A pending referral is claimed to completed first; a completed
// referral (whether claimed this tick or left over from an interrupted run)
// is then credited. Both transitions are conditional updates, so overlapping
// ticks or a restart mid-run cannot double-credit.
func (o *Orchestrator) processCompletedBookings(cfg model.ReferralSettings, now time.Time) {
	bookings, err := o.bookings.ListCompletedWithCode()
	if err != nil {
		o.logger.Error("list completed bookings", "error", err)
		return
	}

	for _, b := range bookings {
		if err := o.processBooking(cfg, b, now); err != nil {
			o.logger.Error("process booking", "booking_id", b.ID, "error", err)
		}
	}
}

func (o *Orchestrator) processBooking(cfg model.ReferralSettings, b model.Booking, now time.Time) error {
	ref, err := o.referrals.GetByBookingID(b.ID)
	if err != nil {
		return err
	}
	if ref == nil || ref.Status == model.ReferralCredited {
		return nil
	}

	if ref.Status == model.ReferralPending {
		if _, err := o.referrals.ClaimCompleted(ref.ID); err != nil {
			return err
		}
		// Fall through to credit regardless of who won the claim; the
		// crediting update carries its own guard.
	}

	credited, err := o.referrals.CountCreditedByReferrer(ref.ReferrerID)
	if err != nil {
		return err
	}
	tier, amount := TierFor(credited, cfg)

	claimed, err := o.referrals.CreditReferral(ref.ID, ref.ReferrerID, tier, amount, now)
	if err != nil {
		return err
	}
	if !claimed {
		// Another execution credited this referral; its side effects are
		// not repeated here.
		return nil
	}

	o.logger.Info("referral credited",
		"referral_id", ref.ID, "referrer_id", ref.ReferrerID, "tier", tier, "amount", amount)

	o.broadcast("referral", "credited", ref.ID, map[string]any{
		"referrer_id": ref.ReferrerID,
		"tier":        tier,
		"amount":      amount,
	})

	if cfg.CreditEarnedEmailEnabled && o.notifier != nil {
		referrer, err := o.customers.GetByID(ref.ReferrerID)
		if err != nil || referrer == nil {
			o.logger.Error("load referrer for notification", "referrer_id", ref.ReferrerID, "error", err)
			return nil
		}
		referred, err := o.customers.GetByID(b.CustomerID)
		referredName := "A friend"
		if err == nil && referred != nil {
			referredName = referred.Name
		}
		o.notifier.CreditEarnedAsync(referrer.Email, referrer.Name, amount, referredName)
	}

	return nil
}

// issueCodes scans for customers who qualify for a referral code but lack
// one. Runs on a slower cadence than the crediting scan.
func (o *Orchestrator) issueCodes(cfg model.ReferralSettings) {
	eligible, err := o.customers.ListEligibleForCode()
	if err != nil {
		o.logger.Error("list customers eligible for code", "error", err)
		return
	}

	for _, c := range eligible {
		newCode, err := code.Generate(c.Name, o.customers.CodeExists)
		if err != nil {
			o.logger.Error("generate referral code", "customer_id", c.ID, "error", err)
			continue
		}

		assigned, err := o.customers.SetReferralCode(c.ID, newCode)
		if err != nil {
			o.logger.Error("assign referral code", "customer_id", c.ID, "error", err)
			continue
		}
		if !assigned {
			// Another path issued a code since the scan; nothing to do.
			continue
		}

		o.logger.Info("referral code issued", "customer_id", c.ID, "code", newCode)
		o.broadcast("code", "issued", c.ID, map[string]any{"code": newCode})

		if cfg.WelcomeEmailEnabled && o.notifier != nil {
			o.notifier.WelcomeAsync(c.Email, c.Name, newCode)
		}
	}
}

func (o *Orchestrator) broadcast(entity, action string, id int64, extra map[string]any) {
	if o.hub != nil {
		o.hub.Broadcast(websocket.NewMessage(entity, action, id, extra))
	}
}
