package delivery

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/emersion/go-smtp"
)

type relayBackend struct {
	started chan struct{}
	release chan struct{}
	got     chan []byte
}

func (b *relayBackend) NewSession(*smtp.Conn) (smtp.Session, error) {
	return &relaySession{b: b}, nil
}

type relaySession struct{ b *relayBackend }

func (s *relaySession) Mail(string, *smtp.MailOptions) error { return nil }
func (s *relaySession) Rcpt(string, *smtp.RcptOptions) error { return nil }
func (s *relaySession) Reset()                               {}
func (s *relaySession) Logout() error                        { return nil }

func (s *relaySession) Data(r io.Reader) error {
	close(s.b.started)
	<-s.b.release
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.b.got <- b
	return nil
}

func startRelay(t *testing.T, be *relayBackend) *SMTPSender {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := smtp.NewServer(be)
	srv.Domain = "localhost"
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })

	addr := ln.Addr().(*net.TCPAddr)
	return &SMTPSender{Host: "127.0.0.1", Port: addr.Port}
}

func TestSMTPSendFinishesStartedSubmission(t *testing.T) {
	be := &relayBackend{started: make(chan struct{}), release: make(chan struct{}), got: make(chan []byte, 1)}
	s := startRelay(t, be)

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		id  string
		err error
	}
	res := make(chan result, 1)
	go func() {
		id, err := s.Send(ctx, Message{FromEmail: "hi@studio.kz", To: "info@client.kz", Subject: "Hello", Text: "body"})
		res <- result{id, err}
	}()

	// cancelled while the relay holds the data
	<-be.started
	cancel()
	close(be.release)

	r := <-res
	if r.err != nil || r.id == "" {
		t.Fatalf("Send = %q, %v; want the relay's acceptance", r.id, r.err)
	}
	if len(<-be.got) == 0 {
		t.Fatal("relay got an empty message")
	}
}

func TestSMTPSendSkipsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &SMTPSender{Host: "127.0.0.1", Port: 1}
	if _, err := s.Send(ctx, Message{FromEmail: "hi@studio.kz", To: "info@client.kz"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
