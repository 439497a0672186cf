package jobs

import (
	"context"
	"log"

	"leadgen-engine/internal/events"
)

// ReplyChecker polls a mailbox once; *replies.Tracker satisfies it.
type ReplyChecker interface {
	Check(ctx context.Context) (int, error)
}

type ReplyJob struct {
	Tracker ReplyChecker
	Hub     Publisher

	guard
}

func (j *ReplyJob) RunOnce(ctx context.Context) (int, error) {
	if !j.begin() {
		return 0, ErrAlreadyRunning
	}
	n, err := j.Tracker.Check(ctx)
	j.end(n, err)
	if err != nil {
		return n, err
	}
	log.Printf("[replies] check done recorded=%d", n)
	if n > 0 {
		publish(j.Hub, events.RepliesRecorded, map[string]int{"recorded": n})
	}
	return n, nil
}
