package model

import (
	"encoding/json"
	"time"
)

// Config is a key-value record stored as JSON.
// Keys use the format "{namespace}:{name}" (e.g. "incident:phishing",
// "json:sample-alert", "group:nightly", "attachment:att-x1Y2z3").
type Config struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
