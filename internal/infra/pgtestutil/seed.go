package pgtestutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// PlayerSeed describes a row inserted by SeedPlayer. A zero Wallet leaves the
// player without a wallet link.
type PlayerSeed struct {
	ExternalID     string
	KillCursor     int64
	Wallet         string
	Verified       bool
	HoldingAddress string
	HoldingBalance int64
}

func SeedPlayer(t *testing.T, db *sql.DB, seed PlayerSeed) int64 {
	t.Helper()

	var externalID, holding any
	if seed.ExternalID != "" {
		externalID = seed.ExternalID
	}

	if seed.HoldingAddress != "" {
		holding = seed.HoldingAddress
	}

	var id int64

	err := db.QueryRowContext(t.Context(), `
		INSERT INTO players (external_id, kill_cursor, holding_address, holding_balance)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, externalID, seed.KillCursor, holding, seed.HoldingBalance).Scan(&id)
	if err != nil {
		t.Fatalf("seed player: %v", err)
	}

	if seed.Wallet != "" {
		_, err = db.ExecContext(t.Context(), `
			INSERT INTO wallet_links (player_id, address, is_primary, verified)
			VALUES ($1, $2, TRUE, $3)
		`, id, seed.Wallet, seed.Verified)
		if err != nil {
			t.Fatalf("seed wallet: %v", err)
		}
	}

	return id
}

// SeedEntry inserts an unsettled ledger entry and returns its id.
func SeedEntry(t *testing.T, db *sql.DB, playerID, kills int64, amount string, bucket int64) int64 {
	t.Helper()

	var id int64

	err := db.QueryRowContext(t.Context(), `
		INSERT INTO ledger_entries (player_id, kills, amount, time_bucket)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, playerID, kills, decimal.RequireFromString(amount), bucket).Scan(&id)
	if err != nil {
		t.Fatalf("seed entry: %v", err)
	}

	return id
}

// SeedSentPayout inserts a sent payout created at at and links entryIDs
// to it.
func SeedSentPayout(t *testing.T, db *sql.DB, playerID int64, amount string, at time.Time, entryIDs ...int64) int64 {
	t.Helper()

	return SeedPayout(t, db, playerID, "sent", amount, at, entryIDs...)
}

// SeedPayout inserts a payout in the given status and links entryIDs to
// it. Only sent payouts get a transfer reference.
func SeedPayout(t *testing.T, db *sql.DB, playerID int64, status, amount string, at time.Time, entryIDs ...int64) int64 {
	t.Helper()

	var id int64

	err := db.QueryRowContext(t.Context(), `
		INSERT INTO payouts (player_id, address, amount, status, idempotency_key,
		                     transfer_reference, attempt_count, first_attempt_at, last_attempt_at, created_at)
		VALUES ($1, 'seed-address', $2, $3, md5(random()::text),
		        CASE WHEN $3 = 'sent' THEN md5(random()::text) END, 1, $4, $4, $4)
		RETURNING id
	`, playerID, decimal.RequireFromString(amount), status, at).Scan(&id)
	if err != nil {
		t.Fatalf("seed payout: %v", err)
	}

	for _, entryID := range entryIDs {
		_, err = db.ExecContext(t.Context(), `
			UPDATE ledger_entries
			SET settled = TRUE, settled_at = $2, payout_id = $3
			WHERE id = $1
		`, entryID, at, id)
		if err != nil {
			t.Fatalf("link entry %d: %v", entryID, err)
		}
	}

	return id
}
