package delivery

import (
	"context"
	"fmt"
	"log"
	"time"

	"leadgen-engine/internal/domain"
)

// LogStore is the slice of the store the client writes send attempts to.
type LogStore interface {
	CreateEmailLog(ctx context.Context, l domain.EmailLog) (int64, error)
	MarkEmailSent(ctx context.Context, id int64, messageID string, at time.Time) error
	MarkEmailFailed(ctx context.Context, id int64, msg string) error
}

type Client struct {
	store     LogStore
	sender    Sender
	fromName  string
	fromEmail string
}

func NewClient(store LogStore, sender Sender, fromName, fromEmail string) *Client {
	return &Client{store: store, sender: sender, fromName: fromName, fromEmail: fromEmail}
}

// Deliver sends one email to a lead. The attempt is logged as sending
// first and then moved to sent or failed.
func (c *Client) Deliver(ctx context.Context, campaignID int64, l domain.Lead, subject, body string) (string, error) {
	if c.sender == nil {
		return "", ErrNoSender
	}
	if c.fromEmail == "" {
		return "", fmt.Errorf("%w: sender email is empty", ErrNoSender)
	}

	logID, err := c.store.CreateEmailLog(ctx, domain.EmailLog{
		LeadID:     l.ID,
		CampaignID: campaignID,
		Recipient:  l.Email,
		Subject:    subject,
	})
	if err != nil {
		return "", fmt.Errorf("create email log: %w", err)
	}

	id, sendErr := c.sender.Send(ctx, Message{
		FromName:  c.fromName,
		FromEmail: c.fromEmail,
		To:        l.Email,
		Subject:   subject,
		Text:      body,
	})
	if sendErr != nil {
		if err := c.store.MarkEmailFailed(ctx, logID, sendErr.Error()); err != nil {
			log.Printf("[delivery] warn: mark failed log=%d err=%v", logID, err)
		}
		return "", sendErr
	}

	// the email is out, so record it even if ctx was cancelled meanwhile
	if err := c.store.MarkEmailSent(context.WithoutCancel(ctx), logID, id, time.Now()); err != nil {
		// the email went out; report it as sent so the lead is not mailed twice
		log.Printf("[delivery] warn: mark sent log=%d id=%s err=%v", logID, id, err)
	}
	return id, nil
}
