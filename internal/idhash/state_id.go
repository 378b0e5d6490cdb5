package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"trade-emulator/internal/domain"
)

// ComputeStateID computes a deterministic state_id using SHA256.
// Formula: SHA256(run_id|seq|YYYYMMDD)
// Returns hex-encoded hash (64 characters).
func ComputeStateID(runID string, seq int, date time.Time) string {
	data := fmt.Sprintf("%s|%d|%s",
		runID,
		seq,
		domain.FormatDate(date),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
