package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fortaops/sentinel/internal/core/domain"
)

// RegistryRepo implements storage.RegistryStore on PostgreSQL. Save replaces
// the whole document inside one transaction, matching the file backend's
// read-modify-write semantics.
type RegistryRepo struct {
	db *DB
}

// NewRegistryRepo creates a PostgreSQL registry store.
func NewRegistryRepo(db *DB) *RegistryRepo {
	return &RegistryRepo{db: db}
}

// Load reads the full registry document.
func (r *RegistryRepo) Load(ctx context.Context) (*domain.RegistryState, error) {
	state := domain.NewRegistryState()

	var threshold float64
	err := r.db.GetContext(ctx, &threshold,
		`SELECT threshold FROM registry_meta WHERE id = 1`)
	switch {
	case err == sql.ErrNoRows:
		// First run, keep the default threshold.
	case err != nil:
		return nil, fmt.Errorf("failed to load registry meta: %w", err)
	default:
		state.Threshold = threshold
	}

	if err := r.db.SelectContext(ctx, &state.Scanners,
		`SELECT name, address, last_sla, alerting FROM scanners ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to load scanners: %w", err)
	}
	if err := r.db.SelectContext(ctx, &state.Wallets,
		`SELECT name, address FROM wallets ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to load wallets: %w", err)
	}
	return state, nil
}

// Save replaces the persisted document.
func (r *RegistryRepo) Save(ctx context.Context, state *domain.RegistryState) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin registry tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO registry_meta (id, threshold) VALUES (1, $1)
		 ON CONFLICT (id) DO UPDATE SET threshold = EXCLUDED.threshold`,
		state.Threshold); err != nil {
		return fmt.Errorf("failed to save registry meta: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM scanners`); err != nil {
		return fmt.Errorf("failed to clear scanners: %w", err)
	}
	for _, s := range state.Scanners {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO scanners (name, address, last_sla, alerting) VALUES ($1, $2, $3, $4)`,
			s.Name, s.Address, s.LastSLA, s.Alerting); err != nil {
			return fmt.Errorf("failed to save scanner %s: %w", s.Name, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM wallets`); err != nil {
		return fmt.Errorf("failed to clear wallets: %w", err)
	}
	for _, w := range state.Wallets {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO wallets (name, address) VALUES ($1, $2)`,
			w.Name, w.Address); err != nil {
			return fmt.Errorf("failed to save wallet %s: %w", w.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit registry tx: %w", err)
	}
	return nil
}
