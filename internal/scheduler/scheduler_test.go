package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestEveryRunsImmediatelyAndOnTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var n atomic.Int32
	done := make(chan struct{})

	go func() {
		Every(ctx, 10*time.Millisecond, "test", func(context.Context) error {
			if n.Add(1) == 3 {
				cancel()
			}
			return errors.New("ignored")
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Every did not return after cancel")
	}
	if n.Load() < 3 {
		t.Fatalf("runs = %d", n.Load())
	}
}

func TestEverySurvivesPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var n atomic.Int32

	go Every(ctx, 5*time.Millisecond, "test", func(context.Context) error {
		if n.Add(1) == 1 {
			panic("boom")
		}
		cancel()
		return nil
	})

	deadline := time.After(2 * time.Second)
	for n.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("task not rerun after panic")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestEveryDisabled(t *testing.T) {
	called := false
	Every(context.Background(), 0, "test", func(context.Context) error {
		called = true
		return nil
	})
	if called {
		t.Fatal("task ran with zero interval")
	}
}
