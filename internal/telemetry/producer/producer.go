// Package producer defines the interface for emitting gateway events (e.g. to Kafka).
package producer

import (
	"context"
	"encoding/json"
	"time"
)

// Event is a single gateway telemetry event, serialized as JSON on the wire.
type Event struct {
	EventType  string          `json:"eventType"`
	Source     string          `json:"source"`
	Account    string          `json:"account,omitempty"`
	SessionKey string          `json:"sessionKey,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Producer emits gateway events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	// Emit sends a single event. Implementations may block briefly; call from a goroutine if needed.
	// Returns an error only on write failure; callers typically log and ignore.
	Emit(ctx context.Context, event *Event) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}
