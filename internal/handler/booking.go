package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/bramble/internal/middleware"
	"github.com/dukerupert/bramble/internal/model"
	"github.com/dukerupert/bramble/internal/referral"
	"github.com/dukerupert/bramble/internal/store"
	"github.com/dukerupert/bramble/internal/websocket"
)

// BookingHandler is the narrow stand-in for the external booking system: it
// accepts new bookings (optionally carrying a referral code) and status
// transitions. The referral core consumes booking state; it never owns it.
type BookingHandler struct {
	bookings  *store.BookingStore
	customers *store.CustomerStore
	referrals *store.ReferralStore
	validator *referral.Validator
	hub       *websocket.Hub
	logger    *slog.Logger
}

func NewBookingHandler(bs *store.BookingStore, cs *store.CustomerStore, rs *store.ReferralStore, v *referral.Validator, hub *websocket.Hub, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{bookings: bs, customers: cs, referrals: rs, validator: v, hub: hub, logger: logger}
}

func (h *BookingHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

type bookingRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	ReferralCode string `json:"referral_code"`
	ServicePrice int64  `json:"service_price"`
}

type bookingResponse struct {
	Booking  *model.Booking `json:"booking"`
	Referral *referralInfo  `json:"referral,omitempty"`
}

type referralInfo struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// Create accepts a booking submission. A referral code, if present, is
// screened synchronously; rejection is a business outcome — the booking is
// still created, just without a referral attached, and the reason is
// returned for display to the customer.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.ReferralCode = strings.ToUpper(strings.TrimSpace(req.ReferralCode))
	if req.Name == "" || req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and email are required"})
		return
	}
	if req.ServicePrice < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "service_price must be >= 0"})
		return
	}

	ipAddress := middleware.RealIP(r)

	var info *referralInfo
	var referrer *model.Customer
	if req.ReferralCode != "" {
		result, owner, err := h.validator.Validate(req.ReferralCode, req.Email, req.Phone, req.Address, ipAddress, req.ServicePrice, time.Now().UTC())
		if err != nil {
			h.logger.Error("validate referral code", "code", req.ReferralCode, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to validate referral code"})
			return
		}
		info = &referralInfo{Accepted: result.Accepted, Reason: result.Reason}
		referrer = owner
	}

	customer, err := h.customers.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("look up customer", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create booking"})
		return
	}
	if customer == nil {
		customer, err = h.customers.Create(req.Name, req.Email, req.Phone, req.Address)
		if err != nil {
			h.logger.Error("create customer", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create booking"})
			return
		}
	}

	var code *string
	if info != nil && info.Accepted {
		code = &req.ReferralCode
	}

	booking, err := h.bookings.Create(customer.ID, req.Email, req.Phone, req.Address, ipAddress, code, req.ServicePrice)
	if err != nil {
		h.logger.Error("create booking", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create booking"})
		return
	}

	if info != nil && info.Accepted {
		ref, err := h.referrals.Create(referrer.ID, booking.ID, req.ReferralCode)
		if err != nil {
			// The booking exists but the referral does not; surface the
			// failure so the customer is not promised a credit.
			h.logger.Error("create referral", "booking_id", booking.ID, "error", err)
			info.Accepted = false
			info.Reason = "referral could not be recorded"
		} else {
			h.broadcast(websocket.NewMessage("referral", "created", ref.ID, map[string]any{
				"referrer_id": ref.ReferrerID,
				"booking_id":  booking.ID,
			}))
		}
	}

	writeJSON(w, http.StatusCreated, bookingResponse{Booking: booking, Referral: info})
}

// Complete marks a booking completed. The referral, if any, is advanced by
// the orchestrator on its next tick, not here.
func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	booking, err := h.bookings.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get booking"})
		return
	}
	if booking == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "booking not found"})
		return
	}

	done, err := h.bookings.MarkCompleted(id, time.Now().UTC())
	if err != nil {
		h.logger.Error("complete booking", "booking_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to complete booking"})
		return
	}
	if !done {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "booking is not in scheduled state"})
		return
	}

	if err := h.customers.IncrementBookings(booking.CustomerID); err != nil {
		h.logger.Error("increment bookings", "customer_id", booking.CustomerID, "error", err)
	}

	booking, err = h.bookings.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get booking"})
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// Cancel marks a scheduled booking cancelled. A pending referral linked to it
// stays pending; see the stale_pending count in the stats endpoint.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	done, err := h.bookings.MarkCancelled(id)
	if err != nil {
		h.logger.Error("cancel booking", "booking_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to cancel booking"})
		return
	}
	if !done {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "booking is not in scheduled state"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	booking, err := h.bookings.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get booking"})
		return
	}
	if booking == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "booking not found"})
		return
	}
	writeJSON(w, http.StatusOK, booking)
}
