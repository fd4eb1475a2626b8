// Package notify delivers budget warnings to users outside the API.
package notify

import (
	"context"
	"errors"
)

var (
	ErrCircuitOpen = errors.New("notifier circuit open")
	ErrTimeout     = errors.New("notifier timeout")
)

// Notifier sends a text message to a chat.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// Nop discards every message. It is used when no bot token is configured.
type Nop struct{}

func (Nop) Notify(context.Context, int64, string) error { return nil }

// Func adapts a function to Notifier.
type Func func(ctx context.Context, chatID int64, text string) error

func (f Func) Notify(ctx context.Context, chatID int64, text string) error {
	return f(ctx, chatID, text)
}
