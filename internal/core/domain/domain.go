package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Validation and lookup errors surfaced to the command layer.
var (
	// ErrDuplicateKey is returned when an entry name is already registered.
	ErrDuplicateKey = errors.New("entry already exists")

	// ErrNotFound is returned when an entry name is not registered.
	ErrNotFound = errors.New("entry not found")

	// ErrInvalidAddress is returned for malformed chain addresses.
	ErrInvalidAddress = errors.New("invalid address format")

	// ErrInvalidName is returned for malformed friendly names.
	ErrInvalidName = errors.New("invalid name")
)

// nameRe matches friendly names usable as registry keys.
var nameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,99}$`)

// ValidateName checks a friendly name used as a registry key.
func ValidateName(name string) error {
	if !nameRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// ValidateAddress checks a 0x-prefixed 20-byte hex address.
func ValidateAddress(address string) error {
	if !common.IsHexAddress(address) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return nil
}

// NormalizeAddress returns the checksummed form of a valid address.
func NormalizeAddress(address string) string {
	return common.HexToAddress(address).Hex()
}

// SameAddress compares two addresses ignoring case and checksum.
func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}

// ScannerEntry is a monitored scanner node.
type ScannerEntry struct {
	Name    string   `json:"name"     db:"name"`
	Address string   `json:"address"  db:"address"`
	LastSLA *float64 `json:"last_sla,omitempty" db:"last_sla"`

	// Alerting is true while the scanner is in a below-threshold state.
	// It is flipped by the poller and persisted so alerts survive restarts
	// without re-firing.
	Alerting bool `json:"alerting" db:"alerting"`
}

// WalletEntry is a monitored wallet address. Transfer events are matched
// against Address as they arrive; no per-wallet state accumulates.
type WalletEntry struct {
	Name    string `json:"name"    db:"name"`
	Address string `json:"address" db:"address"`
}

// DefaultSLAThreshold is the alert threshold used until one is configured.
const DefaultSLAThreshold = 0.90

// RegistryState is the full persisted registry document.
type RegistryState struct {
	Scanners  []ScannerEntry `json:"scanners"`
	Wallets   []WalletEntry  `json:"wallets"`
	Threshold float64        `json:"threshold"`
}

// NewRegistryState returns an empty state with defaults applied.
func NewRegistryState() *RegistryState {
	return &RegistryState{Threshold: DefaultSLAThreshold}
}

// Clone deep-copies the state so mutations can be rolled back if the
// persist fails.
func (s *RegistryState) Clone() *RegistryState {
	out := &RegistryState{Threshold: s.Threshold}
	if s.Scanners != nil {
		out.Scanners = make([]ScannerEntry, len(s.Scanners))
		for i, sc := range s.Scanners {
			out.Scanners[i] = sc
			if sc.LastSLA != nil {
				v := *sc.LastSLA
				out.Scanners[i].LastSLA = &v
			}
		}
	}
	if s.Wallets != nil {
		out.Wallets = make([]WalletEntry, len(s.Wallets))
		copy(out.Wallets, s.Wallets)
	}
	return out
}

// ChainConfig describes one chain to subscribe to. Immutable after load.
type ChainConfig struct {
	// URL is the websocket endpoint for log subscriptions.
	URL string `json:"url"   yaml:"url"`

	// Token is the ERC-20 contract whose Transfer events are watched.
	Token string `json:"token" yaml:"token"`
}

// Validate fails fast on a malformed chain entry.
func (c ChainConfig) Validate(chainID string) error {
	if c.URL == "" {
		return fmt.Errorf("chain %q: missing url", chainID)
	}
	if !strings.HasPrefix(c.URL, "ws://") && !strings.HasPrefix(c.URL, "wss://") {
		return fmt.Errorf("chain %q: url must be a websocket endpoint: %s", chainID, c.URL)
	}
	if err := ValidateAddress(c.Token); err != nil {
		return fmt.Errorf("chain %q: token: %w", chainID, err)
	}
	return nil
}
