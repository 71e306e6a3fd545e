package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/bramble/internal/store"
)

type CustomerHandler struct {
	customers *store.CustomerStore
	logger    *slog.Logger
}

func NewCustomerHandler(cs *store.CustomerStore, logger *slog.Logger) *CustomerHandler {
	return &CustomerHandler{customers: cs, logger: logger}
}

func (h *CustomerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	customer, err := h.customers.GetByID(id)
	if err != nil {
		h.logger.Error("get customer", "customer_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get customer"})
		return
	}
	if customer == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "customer not found"})
		return
	}
	writeJSON(w, http.StatusOK, customer)
}
