package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

type recordingObserver struct {
	mu     sync.Mutex
	sent   []bool
	states []int
}

func (o *recordingObserver) NotificationSent(ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, ok)
}

func (o *recordingObserver) SetCircuitState(_ string, state int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, state)
}

func TestBreakerPassesThrough(t *testing.T) {
	var gotChat int64
	var gotText string
	inner := Func(func(_ context.Context, chatID int64, text string) error {
		gotChat, gotText = chatID, text
		return nil
	})
	obs := &recordingObserver{}
	b := NewBreakerNotifier("test", inner, BreakerConfig{}, obs)

	if err := b.Notify(context.Background(), 42, "hello"); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if gotChat != 42 || gotText != "hello" {
		t.Errorf("inner got (%d, %q)", gotChat, gotText)
	}
	if len(obs.sent) != 1 || !obs.sent[0] {
		t.Errorf("observer sent = %v", obs.sent)
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	inner := Func(func(context.Context, int64, string) error {
		calls++
		return boom
	})
	obs := &recordingObserver{}
	b := NewBreakerNotifier("test", inner, BreakerConfig{MaxFailures: 3, OpenTimeout: time.Hour}, obs)

	for i := 0; i < 3; i++ {
		if err := b.Notify(context.Background(), 1, "x"); !errors.Is(err, boom) {
			t.Fatalf("call %d: expected boom, got %v", i, err)
		}
	}
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("expected open circuit, got %s", b.State())
	}

	if err := b.Notify(context.Background(), 1, "x"); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if calls != 3 {
		t.Errorf("inner called %d times, want 3", calls)
	}
	if len(obs.states) != 1 || obs.states[0] != 1 {
		t.Errorf("observer states = %v, want [1]", obs.states)
	}
}

func TestBreakerTimeout(t *testing.T) {
	inner := Func(func(ctx context.Context, _ int64, _ string) error {
		<-ctx.Done()
		return ctx.Err()
	})
	b := NewBreakerNotifier("test", inner, BreakerConfig{Timeout: 10 * time.Millisecond}, nil)

	if err := b.Notify(context.Background(), 1, "x"); !errors.Is(err, ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestNop(t *testing.T) {
	if err := (Nop{}).Notify(context.Background(), 1, "x"); err != nil {
		t.Errorf("Nop returned %v", err)
	}
}
