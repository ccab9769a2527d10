// Package poller runs the periodic SLA check over all registered scanners.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fortaops/sentinel/internal/core/domain"
	"github.com/fortaops/sentinel/internal/infra/sla"
	"github.com/fortaops/sentinel/internal/metrics"
)

// Registry is the slice of the registry the poller needs.
type Registry interface {
	ListScanners() []domain.ScannerEntry
	Threshold() float64
	UpdateScannerStatus(ctx context.Context, name string, lastSLA *float64, alerting bool) error
}

// Alerter receives threshold-crossing alerts. Forget clears the alerter's
// duplicate-suppression state for a subject.
type Alerter interface {
	Notify(ctx context.Context, alert domain.Alert)
	Forget(subject string)
}

// Config holds poller settings.
type Config struct {
	// Interval between poll ticks. The config layer enforces the floor.
	Interval time.Duration

	// UnreachableAfter is the consecutive failure streak that escalates to
	// a one-time unreachable alert.
	UnreachableAfter int
}

// Poller fetches SLA for every registered scanner on each tick and applies
// the hysteresis policy: an alert fires only on a state transition, so
// consecutive identical-direction readings never re-alert.
type Poller struct {
	cfg     Config
	fetcher sla.Fetcher
	reg     Registry
	alerts  Alerter
	log     *slog.Logger

	// failStreak and escalated are only touched from the poll loop.
	failStreak map[string]int
	escalated  map[string]bool
}

// New creates a poller.
func New(cfg Config, fetcher sla.Fetcher, reg Registry, alerts Alerter) *Poller {
	if cfg.UnreachableAfter <= 0 {
		cfg.UnreachableAfter = 3
	}
	return &Poller{
		cfg:        cfg,
		fetcher:    fetcher,
		reg:        reg,
		alerts:     alerts,
		log:        slog.Default().With("component", "poller"),
		failStreak: make(map[string]int),
		escalated:  make(map[string]bool),
	}
}

// Run polls until the context is cancelled. Individual fetch failures are
// logged and skipped; nothing here terminates the loop early.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.pollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

type fetchResult struct {
	entry domain.ScannerEntry
	value float64
	err   error
}

func (p *Poller) pollOnce(ctx context.Context) {
	scanners := p.reg.ListScanners()
	threshold := p.reg.Threshold()

	results := make([]fetchResult, len(scanners))
	var wg sync.WaitGroup
	for i, entry := range scanners {
		wg.Add(1)
		go func(i int, entry domain.ScannerEntry) {
			defer wg.Done()
			value, err := p.fetcher.FetchSLA(ctx, entry.Address)
			results[i] = fetchResult{entry: entry, value: value, err: err}
		}(i, entry)
	}
	wg.Wait()

	for _, res := range results {
		if ctx.Err() != nil {
			return
		}
		if res.err != nil {
			p.handleFailure(ctx, res.entry, res.err)
			continue
		}
		p.handleReading(ctx, res.entry, res.value, threshold)
	}

	p.pruneRemoved(scanners)
	metrics.SLAPollsTotal.Inc()
}

// handleFailure counts the streak and escalates once it reaches the
// configured length. The alerting flag is never touched on failure.
func (p *Poller) handleFailure(ctx context.Context, entry domain.ScannerEntry, err error) {
	metrics.SLAFetchErrorsTotal.WithLabelValues(entry.Name).Inc()
	p.failStreak[entry.Name]++
	streak := p.failStreak[entry.Name]
	p.log.Warn("sla fetch failed",
		"scanner", entry.Name, "streak", streak, "error", err)

	if streak >= p.cfg.UnreachableAfter && !p.escalated[entry.Name] {
		p.escalated[entry.Name] = true
		alert := domain.NewAlert(entry.Name, domain.AlertUnreachable,
			fmt.Sprintf("SCANNER UNREACHABLE\n%s: %d consecutive failed checks",
				entry.Name, streak))
		p.alerts.Notify(ctx, alert)
	}
}

func (p *Poller) handleReading(
	ctx context.Context,
	entry domain.ScannerEntry,
	value, threshold float64,
) {
	p.failStreak[entry.Name] = 0
	if p.escalated[entry.Name] {
		// The outage is over. Clear the alerter's suppression state so a
		// later outage escalates again instead of being collapsed into the
		// previous one.
		p.escalated[entry.Name] = false
		p.alerts.Forget(entry.Name)
	}
	metrics.ScannerSLA.WithLabelValues(entry.Name).Set(value)

	alerting := entry.Alerting
	switch {
	case value < threshold && !alerting:
		alerting = true
		alert := domain.NewAlert(entry.Name, domain.AlertSLADropped,
			fmt.Sprintf("SCANNER ALERT\n%s: SLA %v dropped below threshold %v",
				entry.Name, value, threshold))
		p.alerts.Notify(ctx, alert)
	case value >= threshold && alerting:
		alerting = false
		alert := domain.NewAlert(entry.Name, domain.AlertSLARecovered,
			fmt.Sprintf("SCANNER RECOVERED\n%s: SLA %v", entry.Name, value))
		p.alerts.Notify(ctx, alert)
	}

	if err := p.reg.UpdateScannerStatus(ctx, entry.Name, &value, alerting); err != nil {
		p.log.Error("failed to persist scanner status",
			"scanner", entry.Name, "error", err)
	}
}

// pruneRemoved drops streak state for scanners no longer registered.
func (p *Poller) pruneRemoved(current []domain.ScannerEntry) {
	names := make(map[string]struct{}, len(current))
	for _, s := range current {
		names[s.Name] = struct{}{}
	}
	for name := range p.failStreak {
		if _, ok := names[name]; !ok {
			delete(p.failStreak, name)
			delete(p.escalated, name)
		}
	}
}
