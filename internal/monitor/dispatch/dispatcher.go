// Package dispatch deduplicates alerts and forwards them to the chat layer.
package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/fortaops/sentinel/internal/core/domain"
	"github.com/fortaops/sentinel/internal/metrics"
	"github.com/fortaops/sentinel/internal/notify"
)

// Dispatcher collapses duplicate alerts and hands the rest to the notifier.
// Delivery is best-effort: a chat failure is logged and never blocks
// subsequent notifications.
type Dispatcher struct {
	notifier notify.Notifier
	seen     SeenStore
	log      *slog.Logger

	mu       sync.Mutex
	lastKind map[string]domain.AlertKind
}

// New creates a dispatcher. seen may be nil, in which case a bounded
// in-memory set is used.
func New(notifier notify.Notifier, seen SeenStore) *Dispatcher {
	if seen == nil {
		seen = NewMemorySeen(DefaultSeenCapacity)
	}
	return &Dispatcher{
		notifier: notifier,
		seen:     seen,
		log:      slog.Default().With("component", "dispatch"),
		lastKind: make(map[string]domain.AlertKind),
	}
}

// Notify dispatches one alert unless it is a duplicate. Event-bearing alerts
// (transfers) dedup on the event id; state alerts dedup on the
// (subject, kind) pair until the kind changes.
func (d *Dispatcher) Notify(ctx context.Context, alert domain.Alert) {
	if alert.EventID != "" {
		dup, err := d.seen.MarkSeen(ctx, alert.EventID)
		if err != nil {
			// Fail open: a dedup store outage must not drop alerts.
			d.log.Warn("seen store failed, dispatching anyway",
				"event_id", alert.EventID, "error", err)
		} else if dup {
			metrics.AlertsSuppressedTotal.WithLabelValues(string(alert.Kind)).Inc()
			d.log.Debug("duplicate event suppressed", "event_id", alert.EventID)
			return
		}
	} else if d.repeatedKind(alert) {
		metrics.AlertsSuppressedTotal.WithLabelValues(string(alert.Kind)).Inc()
		d.log.Debug("duplicate alert suppressed",
			"subject", alert.Subject, "kind", alert.Kind)
		return
	}

	metrics.AlertsDispatchedTotal.WithLabelValues(string(alert.Kind)).Inc()
	if err := d.notifier.Send(ctx, alert.Message); err != nil {
		metrics.NotifyErrorsTotal.Inc()
		d.log.Error("failed to deliver alert",
			"id", alert.ID, "subject", alert.Subject, "kind", alert.Kind, "error", err)
	}
}

// repeatedKind records the alert kind per subject and reports whether the
// same kind was already dispatched since the subject's last state change.
func (d *Dispatcher) repeatedKind(alert domain.Alert) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastKind[alert.Subject] == alert.Kind {
		return true
	}
	d.lastKind[alert.Subject] = alert.Kind
	return false
}

// Forget drops the suppression state for a subject, e.g. when its entry is
// removed from the registry or its failure streak clears.
func (d *Dispatcher) Forget(subject string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.lastKind, subject)
}
