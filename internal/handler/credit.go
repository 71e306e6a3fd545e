package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/bramble/internal/model"
	"github.com/dukerupert/bramble/internal/store"
	"github.com/dukerupert/bramble/internal/websocket"
)

// CreditHandler exposes the credit ledger: balances and history for
// reporting, spending from the booking path, and the administrative
// adjustment override.
type CreditHandler struct {
	credits *store.CreditStore
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewCreditHandler(cs *store.CreditStore, hub *websocket.Hub, logger *slog.Logger) *CreditHandler {
	return &CreditHandler{credits: cs, hub: hub, logger: logger}
}

func (h *CreditHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

// GetBalance returns a customer's account, creating a zeroed one on first
// read so the response shape is uniform.
func (h *CreditHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	account, err := h.credits.GetOrCreate(id)
	if err != nil {
		h.logger.Error("get credit account", "customer_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get balance"})
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *CreditHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	txns, err := h.credits.ListTransactions(id)
	if err != nil {
		h.logger.Error("list transactions", "customer_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list transactions"})
		return
	}
	if txns == nil {
		txns = []model.CreditTransaction{}
	}
	writeJSON(w, http.StatusOK, txns)
}

type amountRequest struct {
	Amount int64  `json:"amount"`
	Note   string `json:"note"`
}

// Use spends credit against a customer's available balance.
func (h *CreditHandler) Use(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	account, err := h.credits.UseCredit(id, req.Amount, strings.TrimSpace(req.Note))
	if errors.Is(err, store.ErrInvalidAmount) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be positive"})
		return
	}
	if errors.Is(err, store.ErrInsufficientBalance) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "insufficient credit balance"})
		return
	}
	if err != nil {
		h.logger.Error("use credit", "customer_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to use credit"})
		return
	}

	h.broadcast(websocket.NewMessage("credit", "used", id, map[string]any{"amount": req.Amount}))
	writeJSON(w, http.StatusOK, account)
}

// Adjust applies a signed administrative correction. The ledger invariants
// still hold: an adjustment that would drive the balance negative or
// total_used above total_earned is rejected.
func (h *CreditHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	account, err := h.credits.Adjust(id, req.Amount, strings.TrimSpace(req.Note))
	if errors.Is(err, store.ErrInvalidAmount) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be non-zero"})
		return
	}
	if errors.Is(err, store.ErrInsufficientBalance) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "adjustment would break the balance invariant"})
		return
	}
	if err != nil {
		h.logger.Error("adjust credit", "customer_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to adjust credit"})
		return
	}

	h.broadcast(websocket.NewMessage("credit", "adjusted", id, map[string]any{"amount": req.Amount}))
	writeJSON(w, http.StatusOK, account)
}
