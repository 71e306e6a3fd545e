package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/bramble/internal/model"
	"github.com/dukerupert/bramble/internal/store"
)

type SettingsHandler struct {
	settings *store.SettingsStore
	logger   *slog.Logger
}

func NewSettingsHandler(ss *store.SettingsStore, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{settings: ss, logger: logger}
}

func (h *SettingsHandler) GetReferral(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.settings.GetReferralSettings()
	if err != nil {
		h.logger.Error("get referral settings", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load settings"})
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *SettingsHandler) UpdateReferral(w http.ResponseWriter, r *http.Request) {
	var cfg model.ReferralSettings
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	if cfg.Tier1Amount < 0 || cfg.Tier2Amount < 0 || cfg.Tier3Amount < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tier amounts must be >= 0"})
		return
	}
	if cfg.MinimumServicePrice < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "minimum_service_price must be >= 0"})
		return
	}
	if cfg.MaxReferralsPerDay < 0 || cfg.MaxReferralsPerWeek < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "velocity limits must be >= 0"})
		return
	}

	if err := h.settings.UpdateReferralSettings(cfg); err != nil {
		h.logger.Error("update referral settings", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save settings"})
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}
