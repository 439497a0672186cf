package events

import (
	"encoding/json"
	"testing"
)

func TestMakeEvent(t *testing.T) {
	raw := MakeEvent("req-1", ScrapeUnit, 1, map[string]int{"leadsNew": 2})

	var e Event
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		t.Fatal(err)
	}
	if e.Type != ScrapeUnit || e.Version != 1 || e.RequestID != "req-1" || e.At.IsZero() {
		t.Fatalf("event = %+v", e)
	}
	if string(e.Data) != `{"leadsNew":2}` {
		t.Fatalf("data = %s", e.Data)
	}
}

func TestHubFanOut(t *testing.T) {
	h := NewHub()
	a := h.Subscribe()
	b := h.Subscribe()

	h.Publish("x")
	if <-a != "x" || <-b != "x" {
		t.Fatal("subscribers did not receive event")
	}

	h.Unsubscribe(a)
	h.Unsubscribe(a)
	if h.Subscribers() != 1 {
		t.Fatalf("subscribers = %d", h.Subscribers())
	}
	if _, ok := <-a; ok {
		t.Fatal("unsubscribed channel still open")
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()
	for i := 0; i < h.buffer+5; i++ {
		h.Publish("e")
	}
	if len(ch) != h.buffer {
		t.Fatalf("buffered = %d, want %d", len(ch), h.buffer)
	}
}
