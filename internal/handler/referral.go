package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/bramble/internal/model"
	"github.com/dukerupert/bramble/internal/store"
)

// ReferralHandler serves the admin reporting endpoints.
type ReferralHandler struct {
	referrals *store.ReferralStore
	logger    *slog.Logger
}

func NewReferralHandler(rs *store.ReferralStore, logger *slog.Logger) *ReferralHandler {
	return &ReferralHandler{referrals: rs, logger: logger}
}

func (h *ReferralHandler) List(w http.ResponseWriter, r *http.Request) {
	referrals, err := h.referrals.List()
	if err != nil {
		h.logger.Error("list referrals", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list referrals"})
		return
	}
	if referrals == nil {
		referrals = []model.Referral{}
	}
	writeJSON(w, http.StatusOK, referrals)
}

func (h *ReferralHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.referrals.Stats()
	if err != nil {
		h.logger.Error("referral stats", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to compute stats"})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *ReferralHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 100 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be 1-100"})
			return
		}
		limit = n
	}

	entries, err := h.referrals.Leaderboard(limit)
	if err != nil {
		h.logger.Error("leaderboard", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to build leaderboard"})
		return
	}
	if entries == nil {
		entries = []store.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
