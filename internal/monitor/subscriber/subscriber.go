// Package subscriber maintains one persistent Transfer-event subscription
// per configured chain.
package subscriber

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/fortaops/sentinel/internal/core/domain"
	"github.com/fortaops/sentinel/internal/infra/chainws"
	"github.com/fortaops/sentinel/internal/metrics"
)

// State is the subscriber connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Registry is the slice of the registry the subscriber needs.
type Registry interface {
	WalletByAddress(address string) (domain.WalletEntry, bool)
}

// Alerter receives transfer alerts.
type Alerter interface {
	Notify(ctx context.Context, alert domain.Alert)
}

// Config holds per-chain subscriber settings.
type Config struct {
	ChainID string
	Chain   domain.ChainConfig

	// InitialDelay and MaxDelay bound the reconnect backoff.
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Subscriber holds one chain's event-stream connection. On connection loss
// it reconnects with exponential backoff and jitter, indefinitely, until its
// context is cancelled.
type Subscriber struct {
	cfg    Config
	reg    Registry
	alerts Alerter
	log    *slog.Logger

	state atomic.Int32

	tokenMu sync.Mutex
	token   *chainws.TokenInfo
}

// New creates a subscriber for one chain.
func New(cfg Config, reg Registry, alerts Alerter) *Subscriber {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 60 * time.Second
	}
	return &Subscriber{
		cfg:    cfg,
		reg:    reg,
		alerts: alerts,
		log:    slog.Default().With("component", "subscriber", "chain", cfg.ChainID),
	}
}

// State returns the current connection state.
func (s *Subscriber) State() State {
	return State(s.state.Load())
}

func (s *Subscriber) setState(state State) {
	s.state.Store(int32(state))
	if state == StateSubscribed {
		metrics.ChainConnected.WithLabelValues(s.cfg.ChainID).Set(1)
	} else {
		metrics.ChainConnected.WithLabelValues(s.cfg.ChainID).Set(0)
	}
}

// Run holds the subscription until the context is cancelled. A connection
// failure never escalates to a fatal error; the backoff resets after every
// session that reached the subscribed state.
func (s *Subscriber) Run(ctx context.Context) error {
	defer s.setState(StateStopped)

	backoff := s.newBackoff()
	for {
		if ctx.Err() != nil {
			return nil
		}

		s.setState(StateConnecting)
		subscribed, err := s.runSession(ctx)
		if ctx.Err() != nil {
			return nil
		}
		s.setState(StateDisconnected)

		if subscribed {
			backoff = s.newBackoff()
		}

		delay, _ := backoff.Next()
		s.log.Warn("subscription lost, reconnecting",
			"delay", delay, "error", err)
		metrics.ChainReconnectsTotal.WithLabelValues(s.cfg.ChainID).Inc()

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func (s *Subscriber) newBackoff() retry.Backoff {
	b := retry.NewExponential(s.cfg.InitialDelay)
	b = retry.WithCappedDuration(s.cfg.MaxDelay, b)
	b = retry.WithJitterPercent(20, b)
	return b
}

// runSession dials, subscribes, and reads events until the connection
// breaks. It reports whether the subscription was established, so the
// caller knows to reset the backoff.
func (s *Subscriber) runSession(ctx context.Context) (bool, error) {
	conn, err := chainws.Dial(ctx, s.cfg.Chain.URL)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	// Closing the conn from here unblocks the read loop when the monitor
	// is stopped, so cancellation propagates promptly.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	subID, err := conn.SubscribeLogs(s.cfg.Chain.Token)
	if err != nil {
		return false, err
	}
	s.setState(StateSubscribed)
	s.log.Info("subscribed to transfer events",
		"subscription", subID, "token", s.cfg.Chain.Token)

	for {
		lg, err := conn.ReadLog()
		if err != nil {
			var frameErr *chainws.NonLogFrameError
			if errors.As(err, &frameErr) {
				// Malformed or unexpected frame: skip, never terminate
				// the subscription over it.
				s.log.Warn("skipping unexpected frame", "error", err)
				continue
			}
			return true, err
		}
		metrics.ChainEventsTotal.WithLabelValues(s.cfg.ChainID).Inc()
		s.handleLog(ctx, lg)
	}
}

func (s *Subscriber) handleLog(ctx context.Context, lg *chainws.Log) {
	transfer, err := chainws.DecodeTransfer(lg)
	if err != nil {
		s.log.Warn("skipping undecodable event",
			"tx", lg.TransactionHash, "error", err)
		return
	}
	if transfer.Removed {
		// Reorged-out log, nothing to alert on.
		return
	}

	wallet, ok := s.reg.WalletByAddress(transfer.To.Hex())
	if !ok {
		return
	}

	alert := domain.NewAlert(wallet.Name, domain.AlertTransfer,
		s.formatTransfer(ctx, wallet, transfer))
	alert.EventID = transfer.EventID()
	s.alerts.Notify(ctx, alert)
}

func (s *Subscriber) formatTransfer(
	ctx context.Context,
	wallet domain.WalletEntry,
	transfer *chainws.Transfer,
) string {
	amount := transfer.Amount.String()
	symbol := "tokens"
	if info := s.tokenInfo(ctx); info != nil {
		amount = chainws.FormatAmount(transfer.Amount, info.Decimals)
		symbol = info.Symbol
	}
	return fmt.Sprintf("WALLET ALERT\n%s(%s): received %s %s from %s",
		wallet.Name, s.cfg.ChainID, amount, symbol, transfer.From.Hex())
}

// tokenInfo lazily queries and caches the token's symbol and decimals.
// A query failure falls back to raw amounts rather than losing the alert.
func (s *Subscriber) tokenInfo(ctx context.Context) *chainws.TokenInfo {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()
	if s.token != nil {
		return s.token
	}

	queryCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	info, err := chainws.QueryTokenInfo(queryCtx, s.cfg.Chain.URL, s.cfg.Chain.Token)
	if err != nil {
		s.log.Warn("failed to query token details", "error", err)
		return nil
	}
	s.token = &info
	return s.token
}
