package background

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"jobmate/apply-service/internal/history"
	"jobmate/apply-service/internal/model"
)

// ─── Handler ─────────────────────────────────────────────────────────────────

// Handler exposes a Service over HTTP.
type Handler struct {
	svc *Service
}

// NewHandler returns a configured Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts all service routes on mux.
//
//	GET /health    → liveness
//	GET /stats     → lifetime stats plus today's counters
//	GET /history   → application history (?limit=&platform=)
//	GET /settings  → current settings
//	PUT /settings  → replace settings
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/stats", h.handleStats)
	mux.HandleFunc("/history", h.handleHistory)
	mux.HandleFunc("/settings", h.handleSettings)
}

// ─── Individual handlers ──────────────────────────────────────────────────────

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		slog.Error("stats failed", "err", err)
		jsonError(w, "storage error", http.StatusInternalServerError)
		return
	}
	rl, err := h.svc.CheckRateLimit(r.Context())
	if err != nil {
		slog.Error("rate limit check failed", "err", err)
		jsonError(w, "storage error", http.StatusInternalServerError)
		return
	}
	jsonOK(w, struct {
		model.Stats
		Today model.RateLimitStatus `json:"today"`
	}{stats, rl})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var q history.Query
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		q.Limit = n
	}
	if v := r.URL.Query().Get("platform"); v != "" {
		p, err := model.ParsePlatform(v)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		q.Platform = p
	}

	recs, err := h.svc.History(r.Context(), q)
	if err != nil {
		slog.Error("history failed", "err", err)
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	jsonOK(w, recs)
}

func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		st, err := h.svc.Settings(r.Context())
		if err != nil {
			slog.Error("settings failed", "err", err)
			jsonError(w, "storage error", http.StatusInternalServerError)
			return
		}
		jsonOK(w, st)

	case http.MethodPut:
		var body model.Settings
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			jsonError(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		st, err := h.svc.SaveSettings(r.Context(), body)
		if err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				jsonError(w, ve.Msg, http.StatusBadRequest)
				return
			}
			slog.Error("save settings failed", "err", err)
			jsonError(w, "storage error", http.StatusInternalServerError)
			return
		}
		jsonOK(w, st)

	default:
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
