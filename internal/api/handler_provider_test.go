package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastprodman/killrewards/internal/infra/logging"
	"github.com/fastprodman/killrewards/internal/infra/metrics"
	"github.com/fastprodman/killrewards/internal/repos/payouts"
	"github.com/fastprodman/killrewards/internal/scheduler"
	"github.com/fastprodman/killrewards/internal/services/payout"
)

type fakeRedriver struct {
	payout payouts.Payout
	err    error
	gotID  int64
	ctxErr error
}

func (f *fakeRedriver) Redrive(ctx context.Context, id int64) (payouts.Payout, error) {
	f.gotID = id
	f.ctxErr = ctx.Err()

	return f.payout, f.err
}

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, r Redriver, hb HeartbeatReader) *httptest.Server {
	t.Helper()

	h := NewHandler(r, hb, logging.Discard())
	h.now = func() time.Time { return now }

	srv := httptest.NewServer(NewRouter(h, metrics.New().Handler()))
	t.Cleanup(srv.Close)

	return srv
}

func writeHeartbeat(t *testing.T, hb scheduler.Heartbeat) scheduler.HeartbeatFile {
	t.Helper()

	f := scheduler.HeartbeatFile{Path: filepath.Join(t.TempDir(), "heartbeat.json")}
	require.NoError(t, f.Write(hb))

	return f
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeRedriver{}, scheduler.HeartbeatFile{Path: "/nonexistent"})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestHeartbeatHandler(t *testing.T) {
	t.Parallel()

	ts := func(d time.Duration) float64 { return float64(now.Add(-d).Unix()) }

	tests := []struct {
		name      string
		heartbeat *scheduler.Heartbeat
		wantCode  int
		wantStale bool
	}{
		{
			name:     "missing file",
			wantCode: http.StatusServiceUnavailable,
		},
		{
			name: "fresh",
			heartbeat: &scheduler.Heartbeat{
				TS: ts(5 * time.Minute), Status: scheduler.StatusOK,
				AccrualIntervalSeconds: 600, SettlementIntervalSeconds: 1200,
			},
			wantCode: http.StatusOK,
		},
		{
			name: "error status is still alive",
			heartbeat: &scheduler.Heartbeat{
				TS: ts(time.Minute), Status: scheduler.StatusError, ConsecutiveErrors: 2,
				AccrualIntervalSeconds: 600, SettlementIntervalSeconds: 600,
			},
			wantCode: http.StatusOK,
		},
		{
			name: "older than three of the longer interval",
			heartbeat: &scheduler.Heartbeat{
				TS: ts(61 * time.Minute), Status: scheduler.StatusOK,
				AccrualIntervalSeconds: 600, SettlementIntervalSeconds: 1200,
			},
			wantCode:  http.StatusServiceUnavailable,
			wantStale: true,
		},
		{
			name: "stopped",
			heartbeat: &scheduler.Heartbeat{
				TS: ts(time.Second), Status: scheduler.StatusStopped,
				AccrualIntervalSeconds: 600, SettlementIntervalSeconds: 600,
			},
			wantCode: http.StatusServiceUnavailable,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			hb := scheduler.HeartbeatFile{Path: filepath.Join(t.TempDir(), "missing.json")}
			if tc.heartbeat != nil {
				hb = writeHeartbeat(t, *tc.heartbeat)
			}

			srv := newTestServer(t, &fakeRedriver{}, hb)

			resp, err := http.Get(srv.URL + "/scheduler/heartbeat")
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tc.wantCode, resp.StatusCode)

			if tc.heartbeat == nil {
				return
			}

			var body map[string]any
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tc.wantStale, body["stale"])
			assert.Equal(t, tc.heartbeat.Status, body["status"])
		})
	}
}

func TestRetryPayoutHandler(t *testing.T) {
	t.Parallel()

	ref := "ABC123"
	detail := "transient: node timeout"

	tests := []struct {
		name       string
		path       string
		redriver   *fakeRedriver
		wantCode   int
		wantStatus string
	}{
		{
			name: "sent",
			path: "/payouts/7/retry",
			redriver: &fakeRedriver{payout: payouts.Payout{
				ID: 7, PlayerID: 3, Amount: decimal.RequireFromString("4.2"),
				Status: payouts.StatusSent, AttemptCount: 2, TransferReference: &ref,
			}},
			wantCode:   http.StatusOK,
			wantStatus: "sent",
		},
		{
			name: "failed again",
			path: "/payouts/7/retry",
			redriver: &fakeRedriver{
				payout: payouts.Payout{ID: 7, Status: payouts.StatusFailed, ErrorDetail: &detail},
				err:    fmt.Errorf("%w: %s", payout.ErrTransferFailed, detail),
			},
			wantCode:   http.StatusOK,
			wantStatus: "failed",
		},
		{
			name:     "not found",
			path:     "/payouts/99/retry",
			redriver: &fakeRedriver{err: fmt.Errorf("get payout: %w", payouts.ErrPayoutNotFound)},
			wantCode: http.StatusNotFound,
		},
		{
			name:     "database error",
			path:     "/payouts/7/retry",
			redriver: &fakeRedriver{err: errors.New("connection refused")},
			wantCode: http.StatusInternalServerError,
		},
		{
			name:     "bad id",
			path:     "/payouts/abc/retry",
			redriver: &fakeRedriver{},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "non positive id",
			path:     "/payouts/0/retry",
			redriver: &fakeRedriver{},
			wantCode: http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := newTestServer(t, tc.redriver, scheduler.HeartbeatFile{Path: os.DevNull})

			resp, err := http.Post(srv.URL+tc.path, "application/json", nil)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tc.wantCode, resp.StatusCode)

			if tc.wantStatus == "" {
				return
			}

			var body payoutResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tc.wantStatus, body.Status)
			assert.Equal(t, int64(7), tc.redriver.gotID)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeRedriver{}, scheduler.HeartbeatFile{Path: os.DevNull})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRetryPayout_WrongMethod(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeRedriver{}, scheduler.HeartbeatFile{Path: os.DevNull})

	resp, err := http.Get(srv.URL + "/payouts/1/retry")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRetryPayout_OutlivesClientDisconnect(t *testing.T) {
	t.Parallel()

	redriver := &fakeRedriver{payout: payouts.Payout{ID: 7, Status: payouts.StatusSent}}
	router := NewRouter(NewHandler(redriver, scheduler.HeartbeatFile{Path: os.DevNull}, logging.Discard()), metrics.New().Handler())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest(http.MethodPost, "/payouts/7/retry", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), redriver.gotID)
	assert.NoError(t, redriver.ctxErr, "redrive must not inherit the request cancellation")
}
