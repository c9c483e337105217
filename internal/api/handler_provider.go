package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fastprodman/killrewards/internal/repos/payouts"
	"github.com/fastprodman/killrewards/internal/scheduler"
	"github.com/fastprodman/killrewards/internal/services/payout"
)

// staleFactor is how many of the longer scheduler interval a heartbeat may
// age before the loop is reported unhealthy.
const staleFactor = 3

type Redriver interface {
	Redrive(ctx context.Context, payoutID int64) (payouts.Payout, error)
}

type HeartbeatReader interface {
	Read() (scheduler.Heartbeat, error)
}

// HandlerProvider exposes the operator endpoints of the scheduler process.
type HandlerProvider struct {
	payouts   Redriver
	heartbeat HeartbeatReader
	log       *slog.Logger
	now       func() time.Time
}

func NewHandler(r Redriver, hb HeartbeatReader, log *slog.Logger) *HandlerProvider {
	return &HandlerProvider{
		payouts:   r,
		heartbeat: hb,
		log:       log,
		now:       time.Now,
	}
}

// --- Helpers ---

func (h *HandlerProvider) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		h.log.Error("failed to encode JSON response", "error", err)
	}
}

func (h *HandlerProvider) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

// parsePayoutIDFromPath reads `{payoutId}` from
//
//	POST /payouts/{payoutId}/retry
func parsePayoutIDFromPath(r *http.Request) (int64, error) {
	idStr := chi.URLParam(r, "payoutId")
	if idStr == "" {
		return 0, errors.New("missing payoutId")
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid payoutId: %w", err)
	}

	if id <= 0 {
		return 0, errors.New("invalid payoutId: must be positive")
	}

	return id, nil
}

type heartbeatResponse struct {
	scheduler.Heartbeat
	AgeSeconds float64 `json:"age_seconds"`
	Stale      bool    `json:"stale"`
}

type payoutResponse struct {
	PayoutID          int64   `json:"payoutId"`
	PlayerID          int64   `json:"playerId"`
	Amount            string  `json:"amount"`
	Status            string  `json:"status"`
	Attempts          int     `json:"attempts"`
	TransferReference *string `json:"transferReference,omitempty"`
	Error             *string `json:"error,omitempty"`
}

// --- Handlers ---

// HealthHandler handles GET /healthz
func (h *HandlerProvider) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HeartbeatHandler handles GET /scheduler/heartbeat. A missing or stale
// heartbeat answers 503 so probes can restart the process.
func (h *HandlerProvider) HeartbeatHandler(w http.ResponseWriter, _ *http.Request) {
	hb, err := h.heartbeat.Read()
	if err != nil {
		h.log.Warn("heartbeat unavailable", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "heartbeat unavailable")

		return
	}

	longest := max(hb.AccrualIntervalSeconds, hb.SettlementIntervalSeconds)
	age := h.now().Sub(hb.Time())

	resp := heartbeatResponse{
		Heartbeat:  hb,
		AgeSeconds: age.Seconds(),
		Stale:      hb.Time().IsZero() || age > time.Duration(staleFactor*longest)*time.Second,
	}

	status := http.StatusOK
	if resp.Stale || hb.Status == scheduler.StatusStopped {
		status = http.StatusServiceUnavailable
	}

	h.writeJSON(w, status, resp)
}

// RetryPayoutHandler handles POST /payouts/{payoutId}/retry
func (h *HandlerProvider) RetryPayoutHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parsePayoutIDFromPath(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid payoutId in path")
		return
	}

	// A client hanging up mid-retry must not abandon the payout between
	// attempts.
	p, err := h.payouts.Redrive(context.WithoutCancel(r.Context()), id)
	if err != nil {
		switch {
		case errors.Is(err, payouts.ErrPayoutNotFound):
			h.writeError(w, http.StatusNotFound, "payout not found")
			return
		case errors.Is(err, payout.ErrTransferFailed):
			// the payout row carries the failure; report it like any other outcome
		default:
			h.log.Error("retry payout", "payout_id", id, "error", err)
			h.writeError(w, http.StatusInternalServerError, "internal error")

			return
		}
	}

	h.writeJSON(w, http.StatusOK, payoutResponse{
		PayoutID:          p.ID,
		PlayerID:          p.PlayerID,
		Amount:            p.Amount.StringFixed(8),
		Status:            string(p.Status),
		Attempts:          p.AttemptCount,
		TransferReference: p.TransferReference,
		Error:             p.ErrorDetail,
	})
}
