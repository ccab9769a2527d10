// Package control owns the monitoring session lifecycle: it spawns the SLA
// poller and one chain subscriber per configured chain, and tears them down
// on stop.
package control

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/fortaops/sentinel/internal/core/domain"
	"github.com/fortaops/sentinel/internal/infra/sla"
	"github.com/fortaops/sentinel/internal/monitor/poller"
	"github.com/fortaops/sentinel/internal/monitor/subscriber"
)

var (
	// ErrAlreadyRunning is returned by Start while a session is active.
	ErrAlreadyRunning = errors.New("monitoring already running")

	// ErrNotRunning is returned by Stop when no session is active.
	ErrNotRunning = errors.New("monitoring not running")
)

// DefaultStopTimeout bounds how long Stop waits for tasks to wind down
// before abandoning them.
const DefaultStopTimeout = 5 * time.Second

// Registry is the registry surface the monitoring tasks consume.
type Registry interface {
	poller.Registry
	subscriber.Registry
}

// Alerter receives alerts from all monitoring tasks and exposes the
// suppression-state reset the poller needs.
type Alerter interface {
	Notify(ctx context.Context, alert domain.Alert)
	Forget(subject string)
}

// Config holds controller settings.
type Config struct {
	PollInterval     time.Duration
	UnreachableAfter int
	Chains           map[string]domain.ChainConfig

	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration

	// StopTimeout defaults to DefaultStopTimeout when zero.
	StopTimeout time.Duration
}

// Controller supervises one monitoring session at a time. Its state is held
// only in memory: a process restart always comes up stopped and waits for
// an explicit start.
type Controller struct {
	cfg     Config
	fetcher sla.Fetcher
	reg     Registry
	alerts  Alerter
	log     *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      *sync.WaitGroup
	subs    map[string]*subscriber.Subscriber
}

// New creates a controller.
func New(cfg Config, fetcher sla.Fetcher, reg Registry, alerts Alerter) *Controller {
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	return &Controller{
		cfg:     cfg,
		fetcher: fetcher,
		reg:     reg,
		alerts:  alerts,
		log:     slog.Default().With("component", "control"),
	}
}

// Start spawns the poller loop and one subscriber task per chain, all
// cancellable through the session context derived from ctx.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrAlreadyRunning
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	wg := &sync.WaitGroup{}

	p := poller.New(poller.Config{
		Interval:         c.cfg.PollInterval,
		UnreachableAfter: c.cfg.UnreachableAfter,
	}, c.fetcher, c.reg, c.alerts)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.Run(sessionCtx); err != nil {
			c.log.Error("poller failed", "error", err)
		}
	}()

	subs := make(map[string]*subscriber.Subscriber, len(c.cfg.Chains))
	for chainID, chain := range c.cfg.Chains {
		sub := subscriber.New(subscriber.Config{
			ChainID:      chainID,
			Chain:        chain,
			InitialDelay: c.cfg.ReconnectInitialDelay,
			MaxDelay:     c.cfg.ReconnectMaxDelay,
		}, c.reg, c.alerts)
		subs[chainID] = sub

		wg.Add(1)
		go func(chainID string, sub *subscriber.Subscriber) {
			defer wg.Done()
			c.log.Info("starting chain subscriber", "chain", chainID)
			if err := sub.Run(sessionCtx); err != nil {
				c.log.Error("subscriber failed", "chain", chainID, "error", err)
			}
		}(chainID, sub)
	}

	c.running = true
	c.cancel = cancel
	c.wg = wg
	c.subs = subs
	c.log.Info("monitoring started", "chains", len(subs))
	return nil
}

// Stop cancels the session and waits for the tasks to wind down, bounded by
// the stop timeout. Tasks still running after the timeout are abandoned and
// logged; they hold a cancelled context and exit on their next wakeup.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return ErrNotRunning
	}

	c.cancel()

	done := make(chan struct{})
	go func(wg *sync.WaitGroup) {
		wg.Wait()
		close(done)
	}(c.wg)

	select {
	case <-done:
		c.log.Info("monitoring stopped")
	case <-time.After(c.cfg.StopTimeout):
		c.log.Warn("stop timeout exceeded, abandoning tasks",
			"timeout", c.cfg.StopTimeout)
	}

	c.running = false
	c.cancel = nil
	c.wg = nil
	c.subs = nil
	return nil
}

// Running reports whether a monitoring session is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// ChainStates returns the connection state per chain subscriber for the
// health endpoint. Empty when stopped.
func (c *Controller) ChainStates() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	states := make(map[string]string, len(c.subs))
	for chainID, sub := range c.subs {
		states[chainID] = sub.State().String()
	}
	return states
}
