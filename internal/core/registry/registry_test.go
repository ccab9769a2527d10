package registry

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/fortaops/sentinel/internal/core/domain"
	"github.com/fortaops/sentinel/internal/infra/storage"
	"github.com/fortaops/sentinel/internal/infra/storage/file"
)

const (
	addr1 = "0x9ff62d1FC52A907B6DCbA8077c2DDCA6E6a9d3e1"
	addr2 = "0x1000000000000000000000000000000000000001"
	addr3 = "0x2000000000000000000000000000000000000002"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	store := file.NewStore(filepath.Join(t.TempDir(), "registry.json"))
	reg, err := Open(context.Background(), store)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return reg
}

func TestAddScanner_Duplicate(t *testing.T) {
	reg := openTestRegistry(t)
	ctx := context.Background()

	if err := reg.AddScanner(ctx, "node1", addr1); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	err := reg.AddScanner(ctx, "node1", addr2)
	if !errors.Is(err, domain.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	scanners := reg.ListScanners()
	if len(scanners) != 1 {
		t.Fatalf("expected 1 scanner, got %d", len(scanners))
	}
	if scanners[0].Address != addr1 {
		t.Errorf("duplicate add overwrote address: %s", scanners[0].Address)
	}
}

func TestAddScanner_Invalid(t *testing.T) {
	reg := openTestRegistry(t)
	ctx := context.Background()

	if err := reg.AddScanner(ctx, "node1", "0x123"); !errors.Is(err, domain.ErrInvalidAddress) {
		t.Errorf("expected ErrInvalidAddress, got %v", err)
	}
	if err := reg.AddScanner(ctx, "bad name", addr1); !errors.Is(err, domain.ErrInvalidName) {
		t.Errorf("expected ErrInvalidName, got %v", err)
	}
	if len(reg.ListScanners()) != 0 {
		t.Error("invalid add left an entry behind")
	}
}

func TestRemoveScanner_NotFound(t *testing.T) {
	reg := openTestRegistry(t)

	err := reg.RemoveScanner(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListScanners_Ordered(t *testing.T) {
	reg := openTestRegistry(t)
	ctx := context.Background()

	for name, addr := range map[string]string{
		"charlie": addr1,
		"alpha":   addr2,
		"bravo":   addr3,
	} {
		if err := reg.AddScanner(ctx, name, addr); err != nil {
			t.Fatalf("add %s failed: %v", name, err)
		}
	}

	scanners := reg.ListScanners()
	want := []string{"alpha", "bravo", "charlie"}
	for i, name := range want {
		if scanners[i].Name != name {
			t.Fatalf("expected order %v, got %+v", want, scanners)
		}
	}
}

func TestWallets(t *testing.T) {
	reg := openTestRegistry(t)
	ctx := context.Background()

	if err := reg.AddWallet(ctx, "treasury", addr1); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := reg.AddWallet(ctx, "treasury", addr2); !errors.Is(err, domain.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	// Lookup is case-insensitive on the hex digits.
	w, ok := reg.WalletByAddress("0x9ff62d1fc52a907b6dcba8077c2ddca6e6a9d3e1")
	if !ok || w.Name != "treasury" {
		t.Errorf("WalletByAddress failed: %+v ok=%v", w, ok)
	}
	if _, ok := reg.WalletByAddress(addr3); ok {
		t.Error("unexpected match for unregistered address")
	}

	if err := reg.RemoveWallet(ctx, "treasury"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := reg.RemoveWallet(ctx, "treasury"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetThreshold(t *testing.T) {
	reg := openTestRegistry(t)
	ctx := context.Background()

	if got := reg.Threshold(); got != domain.DefaultSLAThreshold {
		t.Errorf("expected default threshold, got %v", got)
	}
	if err := reg.SetThreshold(ctx, 0.85); err != nil {
		t.Fatalf("SetThreshold failed: %v", err)
	}
	if got := reg.Threshold(); got != 0.85 {
		t.Errorf("expected 0.85, got %v", got)
	}

	for _, bad := range []float64{0, 1, -0.5, 1.5} {
		if err := reg.SetThreshold(ctx, bad); err == nil {
			t.Errorf("expected %v to be rejected", bad)
		}
	}
	if got := reg.Threshold(); got != 0.85 {
		t.Errorf("rejected update changed threshold to %v", got)
	}
}

func TestUpdateScannerStatus(t *testing.T) {
	reg := openTestRegistry(t)
	ctx := context.Background()

	if err := reg.AddScanner(ctx, "node1", addr1); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	sla := 0.72
	if err := reg.UpdateScannerStatus(ctx, "node1", &sla, true); err != nil {
		t.Fatalf("UpdateScannerStatus failed: %v", err)
	}
	s := reg.ListScanners()[0]
	if s.LastSLA == nil || *s.LastSLA != 0.72 || !s.Alerting {
		t.Errorf("status not recorded: %+v", s)
	}

	// A nil reading keeps the last SLA but can update the flag.
	if err := reg.UpdateScannerStatus(ctx, "node1", nil, false); err != nil {
		t.Fatalf("UpdateScannerStatus failed: %v", err)
	}
	s = reg.ListScanners()[0]
	if s.LastSLA == nil || *s.LastSLA != 0.72 || s.Alerting {
		t.Errorf("nil reading mishandled: %+v", s)
	}

	// Unknown scanners are ignored, not errors.
	if err := reg.UpdateScannerStatus(ctx, "removed-mid-poll", &sla, true); err != nil {
		t.Errorf("expected unknown scanner to be ignored, got %v", err)
	}
}

func TestPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	store := file.NewStore(path)
	ctx := context.Background()

	reg, err := Open(ctx, store)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := reg.AddScanner(ctx, "node1", addr1); err != nil {
		t.Fatalf("add scanner failed: %v", err)
	}
	if err := reg.AddWallet(ctx, "treasury", addr2); err != nil {
		t.Fatalf("add wallet failed: %v", err)
	}
	if err := reg.SetThreshold(ctx, 0.8); err != nil {
		t.Fatalf("set threshold failed: %v", err)
	}

	// A fresh registry over the same file sees the same state.
	reopened, err := Open(ctx, file.NewStore(path))
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if len(reopened.ListScanners()) != 1 || len(reopened.ListWallets()) != 1 {
		t.Error("entries did not survive reopen")
	}
	if reopened.Threshold() != 0.8 {
		t.Errorf("threshold did not survive reopen: %v", reopened.Threshold())
	}
}

// countingStore counts Saves on the way to a real file store.
type countingStore struct {
	inner storage.RegistryStore
	saves int
}

func (c *countingStore) Load(ctx context.Context) (*domain.RegistryState, error) {
	return c.inner.Load(ctx)
}

func (c *countingStore) Save(ctx context.Context, state *domain.RegistryState) error {
	c.saves++
	return c.inner.Save(ctx, state)
}

func TestUpdateScannerStatus_SkipsUnchangedPersist(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{inner: file.NewStore(filepath.Join(t.TempDir(), "registry.json"))}
	reg, err := Open(ctx, store)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := reg.AddScanner(ctx, "node1", addr1); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	saves := store.saves

	sla := 0.95
	if err := reg.UpdateScannerStatus(ctx, "node1", &sla, false); err != nil {
		t.Fatalf("UpdateScannerStatus failed: %v", err)
	}
	if store.saves != saves+1 {
		t.Fatalf("expected first status to persist, saves %d -> %d", saves, store.saves)
	}

	// The same reading and flag again must not rewrite the document.
	for i := 0; i < 3; i++ {
		if err := reg.UpdateScannerStatus(ctx, "node1", &sla, false); err != nil {
			t.Fatalf("UpdateScannerStatus failed: %v", err)
		}
	}
	if err := reg.UpdateScannerStatus(ctx, "node1", nil, false); err != nil {
		t.Fatalf("UpdateScannerStatus failed: %v", err)
	}
	if store.saves != saves+1 {
		t.Errorf("unchanged status rewrote the document, saves %d -> %d",
			saves+1, store.saves)
	}

	// A changed reading or flag persists again.
	lower := 0.80
	if err := reg.UpdateScannerStatus(ctx, "node1", &lower, false); err != nil {
		t.Fatalf("UpdateScannerStatus failed: %v", err)
	}
	if err := reg.UpdateScannerStatus(ctx, "node1", &lower, true); err != nil {
		t.Fatalf("UpdateScannerStatus failed: %v", err)
	}
	if store.saves != saves+3 {
		t.Errorf("changed status did not persist, saves = %d, want %d",
			store.saves, saves+3)
	}
}

// failingStore fails every Save after the first n succeed.
type failingStore struct {
	saves    int
	failFrom int
}

func (f *failingStore) Load(context.Context) (*domain.RegistryState, error) {
	return domain.NewRegistryState(), nil
}

func (f *failingStore) Save(context.Context, *domain.RegistryState) error {
	f.saves++
	if f.saves >= f.failFrom {
		return fmt.Errorf("disk full")
	}
	return nil
}

func TestMutationRollsBackOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{failFrom: 2}
	reg, err := Open(ctx, store)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := reg.AddScanner(ctx, "node1", addr1); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	if err := reg.AddScanner(ctx, "node2", addr2); err == nil {
		t.Fatal("expected second add to fail")
	}

	scanners := reg.ListScanners()
	if len(scanners) != 1 || scanners[0].Name != "node1" {
		t.Errorf("failed persist leaked into memory: %+v", scanners)
	}
}
