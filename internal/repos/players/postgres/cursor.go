package players

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/killrewards/internal/repos/players"
)

// AdvanceCursor moves the kill cursor from -> to. The compare-and-set makes
// a concurrent advance of the same player fail instead of double counting.
func (r *playersRepo) AdvanceCursor(ctx context.Context, tx *sql.Tx, playerID, from, to int64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE players
		SET kill_cursor = $3
		WHERE id = $1
		  AND kill_cursor = $2
	`, playerID, from, to)
	if err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return players.ErrCursorMoved
	}

	return nil
}
