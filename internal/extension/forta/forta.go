// Package forta is the monitoring extension for Forta-network scanner nodes
// and FORT token wallets.
package forta

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fortaops/sentinel/internal/control"
	"github.com/fortaops/sentinel/internal/core/domain"
	"github.com/fortaops/sentinel/internal/core/registry"
	"github.com/fortaops/sentinel/internal/extension"
	"github.com/fortaops/sentinel/internal/infra/chainws"
	"github.com/fortaops/sentinel/internal/infra/sla"
)

var _ extension.Extension = (*Extension)(nil)

const helpText = `HELP

AVAILABLE ACTIONS
[scanner add <name> <address>]
    Add a scanner address to monitor.
[scanner remove <name>]
    Remove a scanner from the monitoring list.
[scanner alert <sla-threshold>]
    Set the SLA threshold for alerts (default 0.90).
[scanner status]
    Query SLA for all registered scanner nodes.
[scanner list]
    Show all registered scanner nodes.
[wallet add <name> <address>]
    Add a wallet address to monitor for token transfers.
[wallet remove <name>]
    Remove a wallet from the monitoring list.
[wallet balance <name>]
    Show current token balance for a wallet.
[wallet list]
    Show all registered wallets.
[chain list]
    Show all configured chains.
[start]
    Start monitoring.
[stop]
    Stop monitoring.
[help]
    Print this help message.`

// Dispatcher is the dedup-state surface the extension clears when an entry
// is removed.
type Dispatcher interface {
	Forget(subject string)
}

// Extension wires the registry, controller, and dispatcher behind the
// typed command surface.
type Extension struct {
	// runCtx outlives individual commands; monitoring sessions started by
	// the start command are bound to it, not to the command's context.
	runCtx context.Context

	reg      *registry.Registry
	ctrl     *control.Controller
	fetcher  sla.Fetcher
	dispatch Dispatcher
	chains   map[string]domain.ChainConfig
}

// New creates the forta extension.
func New(
	runCtx context.Context,
	reg *registry.Registry,
	ctrl *control.Controller,
	fetcher sla.Fetcher,
	dispatch Dispatcher,
	chains map[string]domain.ChainConfig,
) *Extension {
	return &Extension{
		runCtx:   runCtx,
		reg:      reg,
		ctrl:     ctrl,
		fetcher:  fetcher,
		dispatch: dispatch,
		chains:   chains,
	}
}

// Name implements extension.Extension.
func (e *Extension) Name() string { return "forta" }

// Shutdown stops any active monitoring session.
func (e *Extension) Shutdown() error {
	err := e.ctrl.Stop()
	if errors.Is(err, control.ErrNotRunning) {
		return nil
	}
	return err
}

// HandleCommand implements extension.Extension.
func (e *Extension) HandleCommand(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("missing action, try: help")
	}
	switch args[0] {
	case "scanner":
		return e.handleScanner(ctx, args[1:])
	case "wallet":
		return e.handleWallet(ctx, args[1:])
	case "chain":
		return e.handleChain(args[1:])
	case "start":
		return e.handleStart()
	case "stop":
		return e.handleStop()
	case "help":
		return helpText, nil
	default:
		return "", fmt.Errorf("unknown action: %s", args[0])
	}
}

func (e *Extension) handleScanner(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("missing scanner action")
	}
	switch args[0] {
	case "add":
		if len(args) != 3 {
			return "", fmt.Errorf("usage: scanner add <name> <address>")
		}
		return e.scannerAdd(ctx, args[1], args[2])
	case "remove":
		if len(args) != 2 {
			return "", fmt.Errorf("usage: scanner remove <name>")
		}
		if err := e.reg.RemoveScanner(ctx, args[1]); err != nil {
			return "", err
		}
		e.dispatch.Forget(args[1])
		return fmt.Sprintf("SCANNER REMOVED\n%s", args[1]), nil
	case "alert":
		if len(args) != 2 {
			return "", fmt.Errorf("usage: scanner alert <sla-threshold>")
		}
		threshold, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return "", fmt.Errorf("invalid number format: %s", args[1])
		}
		if err := e.reg.SetThreshold(ctx, threshold); err != nil {
			return "", err
		}
		return fmt.Sprintf("ALERT UPDATED\nsla-threshold: %v", threshold), nil
	case "status":
		return e.scannerStatus(ctx), nil
	case "list":
		return e.scannerList(), nil
	default:
		return "", fmt.Errorf("unknown scanner action: %s", args[0])
	}
}

// scannerAdd verifies the address answers on the SLA endpoint before
// registering it, so typos surface immediately instead of as alert noise.
func (e *Extension) scannerAdd(ctx context.Context, name, address string) (string, error) {
	if err := domain.ValidateName(name); err != nil {
		return "", err
	}
	if err := domain.ValidateAddress(address); err != nil {
		return "", err
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := e.fetcher.FetchSLA(checkCtx, address); err != nil {
		return "", fmt.Errorf("scanner address did not answer on the SLA endpoint: %w", err)
	}

	if err := e.reg.AddScanner(ctx, name, address); err != nil {
		return "", err
	}
	return fmt.Sprintf("SCANNER UPDATED\n%s: %s", name, address), nil
}

func (e *Extension) scannerStatus(ctx context.Context) string {
	status := "INACTIVE"
	if e.ctrl.Running() {
		status = "ACTIVE"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SCANNER STATUS (%s)\n", status)
	scanners := e.reg.ListScanners()
	for _, s := range scanners {
		fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		value, err := e.fetcher.FetchSLA(fetchCtx, s.Address)
		cancel()
		if err != nil {
			fmt.Fprintf(&b, "\n%s: unreachable", s.Name)
			continue
		}
		fmt.Fprintf(&b, "\n%s: %v", s.Name, value)
	}
	fmt.Fprintf(&b, "\nCOUNT: %d", len(scanners))
	return b.String()
}

func (e *Extension) scannerList() string {
	var b strings.Builder
	fmt.Fprintf(&b, "SCANNER CONFIG (SLA-THRESHOLD: %v)\n", e.reg.Threshold())
	scanners := e.reg.ListScanners()
	for _, s := range scanners {
		fmt.Fprintf(&b, "\n%s:\n  * %s", s.Name, s.Address)
	}
	fmt.Fprintf(&b, "\nCOUNT: %d", len(scanners))
	return b.String()
}

func (e *Extension) handleWallet(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("missing wallet action")
	}
	switch args[0] {
	case "add":
		if len(args) != 3 {
			return "", fmt.Errorf("usage: wallet add <name> <address>")
		}
		if err := e.reg.AddWallet(ctx, args[1], args[2]); err != nil {
			return "", err
		}
		return fmt.Sprintf("WALLET UPDATED\n%s: %s", args[1], args[2]), nil
	case "remove":
		if len(args) != 2 {
			return "", fmt.Errorf("usage: wallet remove <name>")
		}
		if err := e.reg.RemoveWallet(ctx, args[1]); err != nil {
			return "", err
		}
		e.dispatch.Forget(args[1])
		return fmt.Sprintf("WALLET REMOVED\n%s", args[1]), nil
	case "balance":
		if len(args) != 2 {
			return "", fmt.Errorf("usage: wallet balance <name>")
		}
		return e.walletBalance(ctx, args[1])
	case "list":
		return e.walletList(), nil
	default:
		return "", fmt.Errorf("unknown wallet action: %s", args[0])
	}
}

// walletBalance queries the token balance on every configured chain.
func (e *Extension) walletBalance(ctx context.Context, name string) (string, error) {
	var wallet domain.WalletEntry
	found := false
	for _, w := range e.reg.ListWallets() {
		if w.Name == name {
			wallet = w
			found = true
			break
		}
	}
	if !found {
		return "", fmt.Errorf("wallet %q: %w", name, domain.ErrNotFound)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "WALLET BALANCE (%s)\n", name)
	for _, chainID := range e.chainIDs() {
		chain := e.chains[chainID]
		queryCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		line := e.balanceLine(queryCtx, chainID, chain, wallet.Address)
		cancel()
		b.WriteString(line)
	}
	return b.String(), nil
}

func (e *Extension) balanceLine(
	ctx context.Context,
	chainID string,
	chain domain.ChainConfig,
	address string,
) string {
	balance, err := chainws.QueryBalance(ctx, chain.URL, chain.Token, address)
	if err != nil {
		return fmt.Sprintf("\n%s: query failed", chainID)
	}
	info, err := chainws.QueryTokenInfo(ctx, chain.URL, chain.Token)
	if err != nil {
		return fmt.Sprintf("\n%s: %s tokens", chainID, balance)
	}
	return fmt.Sprintf("\n%s: %s %s",
		chainID, chainws.FormatAmount(balance, info.Decimals), info.Symbol)
}

func (e *Extension) walletList() string {
	var b strings.Builder
	b.WriteString("WALLET CONFIG\n")
	wallets := e.reg.ListWallets()
	for _, w := range wallets {
		fmt.Fprintf(&b, "\n%s: %s", w.Name, w.Address)
	}
	fmt.Fprintf(&b, "\nCOUNT: %d", len(wallets))
	return b.String()
}

func (e *Extension) handleChain(args []string) (string, error) {
	if len(args) == 0 || args[0] != "list" {
		return "", fmt.Errorf("usage: chain list")
	}
	var b strings.Builder
	b.WriteString("CHAIN CONFIG\n")
	for _, chainID := range e.chainIDs() {
		chain := e.chains[chainID]
		fmt.Fprintf(&b, "\n%s:\n    * url: %s\n    * token: %s",
			chainID, chain.URL, chain.Token)
	}
	return b.String(), nil
}

func (e *Extension) handleStart() (string, error) {
	if err := e.ctrl.Start(e.runCtx); err != nil {
		return "", err
	}
	return "Monitoring started", nil
}

func (e *Extension) handleStop() (string, error) {
	if err := e.ctrl.Stop(); err != nil {
		return "", err
	}
	return "Monitoring stopped", nil
}

func (e *Extension) chainIDs() []string {
	ids := make([]string, 0, len(e.chains))
	for id := range e.chains {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
