// Package notify delivers formatted alert text to the chat layer.
package notify

import (
	"context"
	"fmt"
	"time"
)

// Notifier sends one message to the chat layer. Implementations are
// best-effort; the dispatcher logs failures and moves on.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Console prints messages to stdout. Used when no chat backend is
// configured, and in tests.
type Console struct{}

func (Console) Send(ctx context.Context, text string) error {
	fmt.Printf("[%s] %s\n", time.Now().Format(time.RFC3339), text)
	return nil
}
