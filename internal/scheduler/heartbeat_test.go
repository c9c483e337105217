package scheduler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeartbeatFile_RoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	f := HeartbeatFile{Path: filepath.Join(dir, "heartbeat.json")}

	in := Heartbeat{
		TS:                        1_700_000_000.5,
		Status:                    StatusError,
		PID:                       42,
		AccrualIntervalSeconds:    600,
		SettlementIntervalSeconds: 900,
		ConsecutiveErrors:         3,
		Error:                     strings.Repeat("é", 800),
	}

	require.NoError(t, f.Write(in))
	require.NoError(t, f.Write(in)) // overwrite in place

	out, err := f.Read()
	require.NoError(t, err)
	assert.Equal(t, StatusError, out.Status)
	assert.Equal(t, 3, out.ConsecutiveErrors)
	assert.Equal(t, maxHeartbeatError, len([]rune(out.Error)))
	assert.Equal(t, time.Unix(1_700_000_000, 500_000_000).UTC(), out.Time().UTC())

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1, "temp files must not be left behind")
}

func TestHeartbeatFile_OmitsEmptyError(t *testing.T) {
	t.Parallel()

	f := HeartbeatFile{Path: filepath.Join(t.TempDir(), "hb.json")}
	require.NoError(t, f.Write(Heartbeat{Status: StatusOK}))

	raw, err := os.ReadFile(f.Path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"error"`)
}

func TestHeartbeatFile_ReadMissing(t *testing.T) {
	t.Parallel()

	_, err := HeartbeatFile{Path: filepath.Join(t.TempDir(), "nope.json")}.Read()
	assert.ErrorIs(t, err, os.ErrNotExist)
}
