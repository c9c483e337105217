package scheduler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"
)

const (
	StatusStarted = "started"
	StatusOK      = "ok"
	StatusError   = "error"
	StatusStopped = "stopped"

	maxHeartbeatError = 500
)

// Heartbeat is the liveness document the loop publishes after every tick.
// Timestamps are Unix seconds.
type Heartbeat struct {
	TS                        float64 `json:"ts"`
	Status                    string  `json:"status"`
	PID                       int     `json:"pid"`
	AccrualIntervalSeconds    int64   `json:"accrual_interval_seconds"`
	SettlementIntervalSeconds int64   `json:"settlement_interval_seconds"`
	LastAccrualTS             float64 `json:"last_accrual_ts"`
	LastSettlementTS          float64 `json:"last_settlement_ts"`
	ConsecutiveErrors         int     `json:"consecutive_errors"`
	Error                     string  `json:"error,omitempty"`
}

// Time returns TS as a time.Time.
func (h Heartbeat) Time() time.Time {
	return unixTime(h.TS)
}

// HeartbeatFile persists heartbeats with write-to-temp then rename, so a
// reader never sees a half written document.
type HeartbeatFile struct {
	Path string
}

func (f HeartbeatFile) Write(hb Heartbeat) error {
	hb.Error = truncateRunes(hb.Error, maxHeartbeatError)

	data, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("encode heartbeat: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.Path), filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create heartbeat temp file: %w", err)
	}

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Close()
	} else {
		_ = tmp.Close()
	}

	if err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write heartbeat: %w", err)
	}

	err = os.Rename(tmp.Name(), f.Path)
	if err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("publish heartbeat: %w", err)
	}

	return nil
}

func (f HeartbeatFile) Read() (Heartbeat, error) {
	var hb Heartbeat

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return hb, fmt.Errorf("read heartbeat: %w", err)
	}

	err = json.Unmarshal(data, &hb)
	if err != nil {
		return hb, fmt.Errorf("decode heartbeat: %w", err)
	}

	return hb, nil
}

func unixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}

	return float64(t.UnixNano()) / float64(time.Second)
}

func unixTime(ts float64) time.Time {
	if ts <= 0 {
		return time.Time{}
	}

	return time.Unix(0, int64(ts*float64(time.Second)))
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	return string([]rune(s)[:n])
}
