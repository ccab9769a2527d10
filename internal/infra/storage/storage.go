package storage

import (
	"context"

	"github.com/fortaops/sentinel/internal/core/domain"
)

// RegistryStore persists the full registry document. Every mutation is a
// whole-document replace, never a partial patch, so a crash can never leave
// a half-written registry behind.
type RegistryStore interface {
	// Load reads the persisted state. A store with nothing persisted yet
	// returns an empty state, not an error.
	Load(ctx context.Context) (*domain.RegistryState, error)

	// Save replaces the persisted state with the given one.
	Save(ctx context.Context, state *domain.RegistryState) error
}
