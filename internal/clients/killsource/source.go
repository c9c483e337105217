// Package killsource reports how many kills a player scored since a cursor.
package killsource

import (
	"context"
	"errors"
)

// ErrRateLimited is returned when a call was skipped to stay under the
// upstream quota. Callers treat it as "no data this round".
var ErrRateLimited = errors.New("kill source rate limited")

// Delta is the progress since the caller's cursor. NewCursor is the
// cumulative kill count to store once Kills has been accounted for.
type Delta struct {
	NewCursor int64
	Kills     int64
}

type Source interface {
	KillsSince(ctx context.Context, externalID string, cursor int64) (Delta, error)
}

// deltaFromTotal clamps counter resets so a drop never yields negative kills
// and never moves the cursor backwards.
func deltaFromTotal(cursor, total int64) Delta {
	if total <= cursor {
		return Delta{NewCursor: cursor, Kills: 0}
	}

	return Delta{NewCursor: total, Kills: total - cursor}
}
