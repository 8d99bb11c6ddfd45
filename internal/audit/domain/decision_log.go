package domain

import "time"

// DecisionLog is one recorded gateway decision: an operation allowed and
// forwarded, or denied with a reason.
type DecisionLog struct {
	ID         string
	OpHash     string
	Account    string
	SessionKey string
	Asset      string
	Amount     string
	Allowed    bool
	Reason     string
	Stage      string
	IP         string
	CreatedAt  time.Time
}
