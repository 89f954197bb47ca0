// Package idhash computes deterministic identifiers so that replays of the
// same inputs produce byte-identical trade lists and reports.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic trade ID using SHA256.
// Formula: SHA256(strategy_id|symbol|entry_time_ms|seq)
// Returns hex-encoded hash (64 characters). seq disambiguates multiple
// trades entered on the same bar timestamp.
func ComputeTradeID(strategyID, symbol string, entryTimeMs int64, seq int) string {
	data := fmt.Sprintf("%s|%s|%d|%d", strategyID, symbol, entryTimeMs, seq)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeRunID computes a deterministic run ID from the run request.
// Formula: SHA256(strategy_id|symbol|start_ms|end_ms|seed)
func ComputeRunID(strategyID, symbol string, startMs, endMs, seed int64) string {
	data := fmt.Sprintf("%s|%s|%d|%d|%d", strategyID, symbol, startMs, endMs, seed)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
