// Package replies matches inbound mail to sent campaign emails.
package replies

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"

	"leadgen-engine/internal/domain"
	"leadgen-engine/internal/store"
)

// Reply is the part of an inbound header used for matching.
type Reply struct {
	From    string
	Subject string
	// RefIDs are In-Reply-To ids followed by References ids, newest
	// reference first, without angle brackets.
	RefIDs []string
}

func ParseHeader(raw []byte) (Reply, error) {
	th, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return Reply{}, fmt.Errorf("read header: %w", err)
	}
	h := mail.Header{Header: message.Header{Header: th}}

	var r Reply
	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		r.From = strings.ToLower(strings.TrimSpace(from[0].Address))
	}
	if subj, err := h.Subject(); err == nil {
		r.Subject = subj
	}

	seen := map[string]bool{}
	add := func(id string) {
		id = strings.Trim(strings.TrimSpace(id), "<>")
		if id != "" && !seen[id] {
			seen[id] = true
			r.RefIDs = append(r.RefIDs, id)
		}
	}
	if ids, err := h.MsgIDList("In-Reply-To"); err == nil {
		for _, id := range ids {
			add(id)
		}
	}
	if refs, err := h.MsgIDList("References"); err == nil {
		for i := len(refs) - 1; i >= 0; i-- {
			add(refs[i])
		}
	}
	return r, nil
}

type Store interface {
	FindLogByMessageID(ctx context.Context, messageID string) (domain.EmailLog, error)
	FindLatestSentByRecipient(ctx context.Context, addr string) (domain.EmailLog, error)
	MarkReplied(ctx context.Context, id int64) (bool, error)
	IncrementCampaignCounter(ctx context.Context, id int64, counter string, n int) error
}

type Tracker struct {
	store Store
	dial  func(ctx context.Context) (Mailbox, error)
	max   int
}

func NewTracker(s Store, dial func(ctx context.Context) (Mailbox, error)) *Tracker {
	return &Tracker{store: s, dial: dial, max: 200}
}

// Match finds the log a reply answers: by referenced message id first,
// then by the newest sent log to the sender's address.
func (t *Tracker) Match(ctx context.Context, r Reply) (domain.EmailLog, bool, error) {
	for _, id := range r.RefIDs {
		l, err := t.store.FindLogByMessageID(ctx, id)
		if err == nil {
			return l, true, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return domain.EmailLog{}, false, err
		}
	}
	if r.From == "" {
		return domain.EmailLog{}, false, nil
	}
	l, err := t.store.FindLatestSentByRecipient(ctx, r.From)
	if errors.Is(err, store.ErrNotFound) {
		return domain.EmailLog{}, false, nil
	}
	if err != nil {
		return domain.EmailLog{}, false, err
	}
	return l, true, nil
}

// Check polls unseen mail once and returns how many new replies were
// recorded. Unmatched mail stays unseen.
func (t *Tracker) Check(ctx context.Context) (int, error) {
	mb, err := t.dial(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := mb.Close(); err != nil {
			log.Printf("[replies] warn: close mailbox: %v", err)
		}
	}()

	msgs, err := mb.Unseen(ctx, t.max)
	if err != nil {
		return 0, err
	}

	recorded := 0
	var matched []imap.UID
	for _, m := range msgs {
		r, err := ParseHeader(m.Header)
		if err != nil {
			log.Printf("[replies] warn: uid=%d %v", m.UID, err)
			continue
		}
		l, ok, err := t.Match(ctx, r)
		if err != nil {
			return recorded, err
		}
		if !ok {
			continue
		}
		matched = append(matched, m.UID)

		changed, err := t.store.MarkReplied(ctx, l.ID)
		if err != nil {
			return recorded, err
		}
		if !changed {
			continue
		}
		recorded++
		if err := t.store.IncrementCampaignCounter(ctx, l.CampaignID, store.CounterReplied, 1); err != nil {
			log.Printf("[replies] warn: increment replied campaign=%d: %v", l.CampaignID, err)
		}
		log.Printf("[replies] reply recorded log=%d campaign=%d lead=%d from=%s", l.ID, l.CampaignID, l.LeadID, r.From)
	}

	if err := mb.MarkSeen(ctx, matched); err != nil {
		return recorded, err
	}
	return recorded, nil
}
