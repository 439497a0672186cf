package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"leadgen-engine/internal/config"
	"leadgen-engine/internal/domain"
)

type fakeLogs struct {
	created []domain.EmailLog
	sent    map[int64]string
	failed  map[int64]string
}

func newFakeLogs() *fakeLogs {
	return &fakeLogs{sent: map[int64]string{}, failed: map[int64]string{}}
}

func (f *fakeLogs) CreateEmailLog(_ context.Context, l domain.EmailLog) (int64, error) {
	f.created = append(f.created, l)
	return int64(len(f.created)), nil
}

func (f *fakeLogs) MarkEmailSent(ctx context.Context, id int64, messageID string, _ time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.sent[id] = messageID
	return nil
}

func (f *fakeLogs) MarkEmailFailed(_ context.Context, id int64, msg string) error {
	f.failed[id] = msg
	return nil
}

type fakeSender struct {
	err  error
	last Message
}

func (s *fakeSender) Send(_ context.Context, m Message) (string, error) {
	s.last = m
	if s.err != nil {
		return "", s.err
	}
	return "msg-1", nil
}

func TestHTTPSenderSend(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/emails" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("auth header = %q", r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"id":"abc123"}`))
	}))
	defer srv.Close()

	s := NewHTTPSender(srv.URL+"/", "key")
	id, err := s.Send(context.Background(), Message{
		FromName: "Studio", FromEmail: "hi@studio.kz", To: "a@b.kz", Subject: "Hello", Text: "Body",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if id != "abc123" {
		t.Fatalf("id = %q", id)
	}
	if got.From != "Studio <hi@studio.kz>" || len(got.To) != 1 || got.To[0] != "a@b.kz" || got.Subject != "Hello" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestHTTPSenderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid from"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPSender(srv.URL, "key").Send(context.Background(), Message{FromEmail: "x@y.kz", To: "a@b.kz"})
	if err == nil || !strings.Contains(err.Error(), "invalid from") {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestBuildMessage(t *testing.T) {
	raw, id, err := buildMessage(Message{
		FromName: "Studio", FromEmail: "hi@studio.kz", To: "a@b.kz", Subject: "Hello", Text: "Body text",
	}, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	if err != nil {
		t.Fatalf("buildMessage: %v", err)
	}
	if id == "" || strings.ContainsAny(id, "<>") {
		t.Fatalf("message id = %q", id)
	}
	s := string(raw)
	for _, want := range []string{"Subject: Hello", "a@b.kz", "hi@studio.kz", "Body text", id} {
		if !strings.Contains(s, want) {
			t.Errorf("message missing %q:\n%s", want, s)
		}
	}
}

func TestDeliverRecordsSent(t *testing.T) {
	logs := newFakeLogs()
	snd := &fakeSender{}
	c := NewClient(logs, snd, "Studio", "hi@studio.kz")

	id, err := c.Deliver(context.Background(), 7, domain.Lead{ID: 3, Email: "a@b.kz"}, "S", "B")
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if id != "msg-1" {
		t.Fatalf("id = %q", id)
	}
	if len(logs.created) != 1 || logs.created[0].CampaignID != 7 || logs.created[0].LeadID != 3 {
		t.Fatalf("unexpected log %+v", logs.created)
	}
	if logs.sent[1] != "msg-1" {
		t.Fatalf("log not marked sent: %+v", logs.sent)
	}
	if snd.last.To != "a@b.kz" || snd.last.FromEmail != "hi@studio.kz" {
		t.Fatalf("unexpected message %+v", snd.last)
	}
}

type cancellingSender struct{ cancel context.CancelFunc }

func (s cancellingSender) Send(context.Context, Message) (string, error) {
	s.cancel()
	return "msg-2", nil
}

func TestDeliverRecordsSendFinishedAfterCancel(t *testing.T) {
	logs := newFakeLogs()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := NewClient(logs, cancellingSender{cancel: cancel}, "Studio", "hi@studio.kz")

	id, err := c.Deliver(ctx, 1, domain.Lead{ID: 3, Email: "info@client.kz"}, "Hi", "body")
	if err != nil || id != "msg-2" {
		t.Fatalf("Deliver = %q, %v", id, err)
	}
	if logs.sent[1] != "msg-2" {
		t.Fatalf("sent logs = %v", logs.sent)
	}
}

func TestDeliverRecordsFailure(t *testing.T) {
	logs := newFakeLogs()
	c := NewClient(logs, &fakeSender{err: errors.New("rejected")}, "", "hi@studio.kz")

	if _, err := c.Deliver(context.Background(), 1, domain.Lead{ID: 1, Email: "a@b.kz"}, "S", "B"); err == nil {
		t.Fatal("expected error")
	}
	if logs.failed[1] != "rejected" {
		t.Fatalf("log not marked failed: %+v", logs.failed)
	}
	if len(logs.sent) != 0 {
		t.Fatalf("unexpected sent marks: %+v", logs.sent)
	}
}

func TestDeliverWithoutSender(t *testing.T) {
	logs := newFakeLogs()
	_, err := NewClient(logs, nil, "", "hi@studio.kz").Deliver(context.Background(), 1, domain.Lead{Email: "a@b.kz"}, "S", "B")
	if !errors.Is(err, ErrNoSender) {
		t.Fatalf("err = %v", err)
	}
	if len(logs.created) != 0 {
		t.Fatal("no log should be written without a sender")
	}
}

func TestNewSender(t *testing.T) {
	var cfg config.Config
	config.ApplyDefaults(&cfg)

	if _, err := NewSender(cfg); !errors.Is(err, ErrNoSender) {
		t.Fatalf("expected ErrNoSender without api key, got %v", err)
	}
	cfg.Delivery.APIKey = "k"
	if s, err := NewSender(cfg); err != nil {
		t.Fatalf("http sender: %v", err)
	} else if _, ok := s.(*HTTPSender); !ok {
		t.Fatalf("got %T", s)
	}
	cfg.Delivery.Provider = "smtp"
	cfg.Delivery.SMTPHost = "smtp.example.kz"
	if s, err := NewSender(cfg); err != nil {
		t.Fatalf("smtp sender: %v", err)
	} else if _, ok := s.(*SMTPSender); !ok {
		t.Fatalf("got %T", s)
	}
}
