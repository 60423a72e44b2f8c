package domain

import (
	"encoding/json"
	"time"
)

// CacheSchemaVersion is stamped on every entry written to the durable cache.
const CacheSchemaVersion = "1.0"

// CacheEntry is the envelope stored in both cache tiers.
type CacheEntry struct {
	Key           string          `json:"key"`
	Payload       json.RawMessage `json:"payload"`
	StoredAt      time.Time       `json:"stored_at"`
	SchemaVersion string          `json:"schema_version"`
}

// RetryRecord is kept in the durable cache for operations that carry a
// correlation key and failed their last retry chain.
type RetryRecord struct {
	Key       string    `json:"key"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error"`
	Queued    bool      `json:"queued"`
	FailedAt  time.Time `json:"failed_at"`
}
