// Package file persists the registry document as a JSON file, the default
// backend when no database is configured.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fortaops/sentinel/internal/core/domain"
)

// Store reads and writes the registry document at a fixed path.
type Store struct {
	path string
}

// NewStore creates a file-backed registry store.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the document. A missing file is the expected first-run state
// and yields an empty registry; an unreadable or unparseable file is an
// error the caller treats as fatal.
func (s *Store) Load(ctx context.Context) (*domain.RegistryState, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return domain.NewRegistryState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	state := domain.NewRegistryState()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to parse registry file %s: %w", s.path, err)
	}
	return state, nil
}

// Save replaces the document atomically: the new content is written to a
// temp file in the same directory and renamed over the old one.
func (s *Store) Save(ctx context.Context, state *domain.RegistryState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".registry-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp registry file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close registry file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace registry file: %w", err)
	}
	return nil
}
