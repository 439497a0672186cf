// Package delivery sends campaign emails and records each attempt.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"leadgen-engine/internal/config"
)

var ErrNoSender = errors.New("delivery: no sender configured")

type Message struct {
	FromName  string
	FromEmail string
	To        string
	Subject   string
	Text      string
}

// Sender hands one message to a provider and returns the provider's id
// for it.
type Sender interface {
	Send(ctx context.Context, m Message) (string, error)
}

// NewSender builds the provider named in cfg.Delivery.Provider. Secrets
// are expected to be resolved into cfg already.
func NewSender(cfg config.Config) (Sender, error) {
	switch strings.ToLower(cfg.Delivery.Provider) {
	case "http", "":
		if cfg.Delivery.APIKey == "" {
			return nil, fmt.Errorf("%w: delivery api key is empty", ErrNoSender)
		}
		return NewHTTPSender(cfg.Delivery.APIURL, cfg.Delivery.APIKey), nil
	case "smtp":
		if cfg.Delivery.SMTPHost == "" {
			return nil, fmt.Errorf("%w: smtp host is empty", ErrNoSender)
		}
		return &SMTPSender{
			Host:     cfg.Delivery.SMTPHost,
			Port:     cfg.Delivery.SMTPPort,
			Username: cfg.Delivery.SMTPUsername,
			Password: cfg.Delivery.SMTPPassword,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrNoSender, cfg.Delivery.Provider)
	}
}

func (m Message) from() string {
	if m.FromName == "" {
		return m.FromEmail
	}
	return fmt.Sprintf("%s <%s>", m.FromName, m.FromEmail)
}
