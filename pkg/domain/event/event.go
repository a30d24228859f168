// Package event defines the domain event types emitted by the orchestration
// core and the wire messages exchanged with the external scanning engine.
package event

import "time"

// Type identifies a domain event that downstream consumers (alert rules,
// webhooks) can subscribe to.
type Type string

const (
	TypeScanStarted      Type = "SCAN_STARTED"
	TypeScanCompleted    Type = "SCAN_COMPLETED"
	TypeScanFailed       Type = "SCAN_FAILED"
	TypeNewVulnerability Type = "NEW_VULNERABILITY"
)

// IsValid returns true if the event type is known.
func (t Type) IsValid() bool {
	switch t {
	case TypeScanStarted, TypeScanCompleted, TypeScanFailed, TypeNewVulnerability:
		return true
	}
	return false
}

// Envelope is the JSON body delivered to webhook endpoints.
type Envelope struct {
	Event     Type      `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}
