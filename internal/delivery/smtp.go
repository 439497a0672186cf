package delivery

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// SMTPSender submits through an SMTP relay. Port 465 uses implicit TLS,
// anything else STARTTLS when the server offers it.
type SMTPSender struct {
	Host     string
	Port     int
	Username string
	Password string
}

func (s *SMTPSender) Send(ctx context.Context, m Message) (string, error) {
	raw, msgID, err := buildMessage(m, time.Now())
	if err != nil {
		return "", err
	}

	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	var auth sasl.Client
	if s.Username != "" {
		auth = sasl.NewPlainClient("", s.Username, s.Password)
	}

	send := smtp.SendMail
	if s.Port == 465 {
		send = smtp.SendMailTLS
	}

	// cancellation stops a submission from starting; one in progress
	// runs until the relay answers
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := send(addr, auth, m.FromEmail, []string{m.To}, bytes.NewReader(raw)); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}
	return msgID, nil
}

// buildMessage renders a text/plain message and returns it with its
// Message-ID (without angle brackets).
func buildMessage(m Message, now time.Time) ([]byte, string, error) {
	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{{Name: m.FromName, Address: m.FromEmail}})
	h.SetAddressList("To", []*mail.Address{{Address: m.To}})
	h.SetSubject(m.Subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, "", fmt.Errorf("message id: %w", err)
	}
	id, err := h.MessageID()
	if err != nil {
		return nil, "", fmt.Errorf("message id: %w", err)
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, "", fmt.Errorf("create message: %w", err)
	}
	if _, err := io.WriteString(w, m.Text); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), id, nil
}
