package domain

import (
	"time"

	"github.com/google/uuid"
)

// AlertKind classifies a notification. The (subject, kind) pair drives
// duplicate suppression in the dispatcher.
type AlertKind string

const (
	// AlertSLADropped fires once when a scanner falls below the threshold.
	AlertSLADropped AlertKind = "scanner.sla_dropped"

	// AlertSLARecovered fires once when an alerting scanner recovers.
	AlertSLARecovered AlertKind = "scanner.sla_recovered"

	// AlertUnreachable fires once after a streak of failed SLA fetches.
	AlertUnreachable AlertKind = "scanner.unreachable"

	// AlertTransfer fires for a token transfer into a registered wallet.
	AlertTransfer AlertKind = "wallet.transfer"
)

// Alert is a single notification on its way to the chat layer.
type Alert struct {
	ID      string
	Subject string // friendly name of the scanner or wallet
	Kind    AlertKind
	Message string

	// EventID identifies the on-chain event ("txhash:logindex") for
	// transfer alerts. Empty for scanner alerts; when set, the dispatcher
	// dedups on it instead of on (Subject, Kind).
	EventID string

	At time.Time
}

// NewAlert builds an alert with a fresh id and timestamp.
func NewAlert(subject string, kind AlertKind, message string) Alert {
	return Alert{
		ID:      uuid.NewString(),
		Subject: subject,
		Kind:    kind,
		Message: message,
		At:      time.Now(),
	}
}
