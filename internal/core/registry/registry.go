// Package registry owns the monitored scanner and wallet entries. All reads
// and mutations are serialized through one mutex; every successful mutation
// is written through to the store before it becomes visible.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/fortaops/sentinel/internal/core/domain"
	"github.com/fortaops/sentinel/internal/infra/storage"
)

// Registry is the in-memory registry backed by a RegistryStore.
type Registry struct {
	mu    sync.Mutex
	store storage.RegistryStore
	state *domain.RegistryState
	log   *slog.Logger
}

// Open loads the persisted state. A corrupt store is returned as an error;
// the caller treats it as fatal rather than continuing with unknown state.
func Open(ctx context.Context, store storage.RegistryStore) (*Registry, error) {
	state, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	return &Registry{
		store: store,
		state: state,
		log:   slog.Default().With("component", "registry"),
	}, nil
}

// commit persists a candidate state and installs it only on success, so a
// failed persist leaves the in-memory state untouched.
func (r *Registry) commit(ctx context.Context, next *domain.RegistryState) error {
	if err := r.store.Save(ctx, next); err != nil {
		return fmt.Errorf("failed to persist registry: %w", err)
	}
	r.state = next
	return nil
}

// AddScanner registers a scanner node.
func (r *Registry) AddScanner(ctx context.Context, name, address string) error {
	if err := domain.ValidateName(name); err != nil {
		return err
	}
	if err := domain.ValidateAddress(address); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.state.Scanners {
		if s.Name == name {
			return fmt.Errorf("scanner %q: %w", name, domain.ErrDuplicateKey)
		}
	}

	next := r.state.Clone()
	next.Scanners = append(next.Scanners, domain.ScannerEntry{
		Name:    name,
		Address: domain.NormalizeAddress(address),
	})
	sortScanners(next.Scanners)

	if err := r.commit(ctx, next); err != nil {
		return err
	}
	r.log.Info("scanner added", "name", name, "address", address)
	return nil
}

// RemoveScanner unregisters a scanner node.
func (r *Registry) RemoveScanner(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.state.Clone()
	idx := -1
	for i, s := range next.Scanners {
		if s.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("scanner %q: %w", name, domain.ErrNotFound)
	}
	next.Scanners = append(next.Scanners[:idx], next.Scanners[idx+1:]...)

	if err := r.commit(ctx, next); err != nil {
		return err
	}
	r.log.Info("scanner removed", "name", name)
	return nil
}

// AddWallet registers a wallet address.
func (r *Registry) AddWallet(ctx context.Context, name, address string) error {
	if err := domain.ValidateName(name); err != nil {
		return err
	}
	if err := domain.ValidateAddress(address); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, w := range r.state.Wallets {
		if w.Name == name {
			return fmt.Errorf("wallet %q: %w", name, domain.ErrDuplicateKey)
		}
	}

	next := r.state.Clone()
	next.Wallets = append(next.Wallets, domain.WalletEntry{
		Name:    name,
		Address: domain.NormalizeAddress(address),
	})
	sortWallets(next.Wallets)

	if err := r.commit(ctx, next); err != nil {
		return err
	}
	r.log.Info("wallet added", "name", name, "address", address)
	return nil
}

// RemoveWallet unregisters a wallet address.
func (r *Registry) RemoveWallet(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.state.Clone()
	idx := -1
	for i, w := range next.Wallets {
		if w.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("wallet %q: %w", name, domain.ErrNotFound)
	}
	next.Wallets = append(next.Wallets[:idx], next.Wallets[idx+1:]...)

	if err := r.commit(ctx, next); err != nil {
		return err
	}
	r.log.Info("wallet removed", "name", name)
	return nil
}

// ListScanners returns the registered scanners ordered by name.
func (r *Registry) ListScanners() []domain.ScannerEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.ScannerEntry, len(r.state.Scanners))
	copy(out, r.state.Scanners)
	return out
}

// ListWallets returns the registered wallets ordered by name.
func (r *Registry) ListWallets() []domain.WalletEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.WalletEntry, len(r.state.Wallets))
	copy(out, r.state.Wallets)
	return out
}

// WalletByAddress resolves a wallet entry from its chain address.
func (r *Registry) WalletByAddress(address string) (domain.WalletEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.state.Wallets {
		if domain.SameAddress(w.Address, address) {
			return w, true
		}
	}
	return domain.WalletEntry{}, false
}

// Threshold returns the configured SLA alert threshold.
func (r *Registry) Threshold() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Threshold
}

// SetThreshold updates the SLA alert threshold, interval (0..1).
func (r *Registry) SetThreshold(ctx context.Context, threshold float64) error {
	if threshold <= 0 || threshold >= 1 {
		return fmt.Errorf("threshold must be in (0..1), got %v", threshold)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.state.Clone()
	next.Threshold = threshold

	if err := r.commit(ctx, next); err != nil {
		return err
	}
	r.log.Info("sla threshold updated", "threshold", threshold)
	return nil
}

// UpdateScannerStatus records a poll result for a scanner: the latest SLA
// reading (nil when the fetch failed) and the alerting flag. Unknown names
// are ignored, which covers a scanner removed mid-poll. A result identical
// to the recorded state is not persisted, so a steady fleet does not rewrite
// the document on every tick.
func (r *Registry) UpdateScannerStatus(
	ctx context.Context,
	name string,
	lastSLA *float64,
	alerting bool,
) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.state.Clone()
	changed := false
	for i := range next.Scanners {
		s := &next.Scanners[i]
		if s.Name != name {
			continue
		}
		if lastSLA != nil && (s.LastSLA == nil || *s.LastSLA != *lastSLA) {
			v := *lastSLA
			s.LastSLA = &v
			changed = true
		}
		if s.Alerting != alerting {
			s.Alerting = alerting
			changed = true
		}
		break
	}
	if !changed {
		return nil
	}
	return r.commit(ctx, next)
}

func sortScanners(scanners []domain.ScannerEntry) {
	sort.Slice(scanners, func(i, j int) bool { return scanners[i].Name < scanners[j].Name })
}

func sortWallets(wallets []domain.WalletEntry) {
	sort.Slice(wallets, func(i, j int) bool { return wallets[i].Name < wallets[j].Name })
}
