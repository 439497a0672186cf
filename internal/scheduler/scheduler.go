// Package scheduler runs periodic tasks until their context ends.
package scheduler

import (
	"context"
	"errors"
	"log"
	"time"
)

type Task func(ctx context.Context) error

// Every runs task right away and then on each tick. Runs never overlap:
// a tick that fires while the task is busy is dropped by the ticker.
// Every returns when ctx is done.
func Every(ctx context.Context, interval time.Duration, name string, task Task) {
	if interval <= 0 {
		log.Printf("[%s] warn: schedule disabled interval=%s", name, interval)
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	run(ctx, name, task)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			run(ctx, name, task)
		}
	}
}

func run(ctx context.Context, name string, task Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[%s] error: panic: %v", name, r)
		}
	}()
	if err := task(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("[%s] error: %v", name, err)
	}
}
