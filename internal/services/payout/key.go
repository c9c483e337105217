package payout

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"
)

const keyVersion = "v1:"

// IdempotencyKey derives the payout key from the covered entry ids. The ids
// are sorted first so the key does not depend on selection order.
func IdempotencyKey(entryIDs []int64) string {
	ids := slices.Clone(entryIDs)
	slices.Sort(ids)

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}

	sum := sha256.Sum256([]byte(keyVersion + strings.Join(parts, ",")))

	return hex.EncodeToString(sum[:])
}
