package publishers

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type stubPublisher struct {
	id     string
	typ    string
	err    error
	calls  int
	closed bool
}

func (s *stubPublisher) ID() string   { return s.id }
func (s *stubPublisher) Type() string { return s.typ }
func (s *stubPublisher) Publish(context.Context, Event) error {
	s.calls++
	return s.err
}
func (s *stubPublisher) Close() error {
	s.closed = true
	return nil
}

func TestFanoutPublishAggregatesErrors(t *testing.T) {
	ok := &stubPublisher{id: "ok", typ: "http"}
	bad := &stubPublisher{id: "bad", typ: "sqs", err: errors.New("failed")}
	fanout := NewFanout([]Publisher{ok, nil, bad})

	if fanout.Size() != 2 {
		t.Fatalf("nil publishers must be dropped, size=%d", fanout.Size())
	}

	count, err := fanout.Publish(context.Background(), Event{})
	if count != 1 {
		t.Fatalf("expected 1 success, got %d", count)
	}
	if err == nil || !strings.Contains(err.Error(), "sqs publisher[bad]") {
		t.Fatalf("expected aggregated error naming the publisher, got %v", err)
	}
	if ok.calls != 1 || bad.calls != 1 {
		t.Fatalf("every publisher must be called once")
	}

	if err := fanout.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !ok.closed || !bad.closed {
		t.Fatalf("Close must reach every publisher")
	}
}

func TestNilFanoutIsInert(t *testing.T) {
	var f *Fanout
	if n, err := f.Publish(context.Background(), Event{}); n != 0 || err != nil {
		t.Fatalf("unexpected %d %v", n, err)
	}
	if f.Size() != 0 || f.Close() != nil {
		t.Fatalf("nil fanout must be empty")
	}
}

func TestBuildAllWithDefaultRegistry(t *testing.T) {
	pubs, err := BuildAll(context.Background(), DefaultRegistry(), []PublisherConfig{
		{ID: "http", Type: TypeHTTP, HTTP: &HTTPPublisherConfig{URL: "https://example.com"}},
	}, nil)
	if err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	if len(pubs) != 1 || pubs[0].Type() != TypeHTTP {
		t.Fatalf("expected 1 http publisher, got %#v", pubs)
	}
}

func TestBuildAllClosesBuiltPublishersOnFailure(t *testing.T) {
	first := &stubPublisher{id: "first", typ: "stub"}
	reg := NewRegistry(map[string]Builder{
		"stub": func(context.Context, PublisherConfig, Logger) (Publisher, error) { return first, nil },
	})

	_, err := BuildAll(context.Background(), reg, []PublisherConfig{
		{ID: "first", Type: "stub"},
		{ID: "second", Type: "unknown"},
	}, nil)
	if err == nil {
		t.Fatalf("expected error for unregistered type")
	}
	if !first.closed {
		t.Fatalf("already built publishers must be closed")
	}
}

func TestFanoutStopsOnCancelledContext(t *testing.T) {
	first := &stubPublisher{id: "a", typ: "http"}
	second := &stubPublisher{id: "b", typ: "http"}
	fanout := NewFanout([]Publisher{first, second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	count, err := fanout.Publish(ctx, Event{})
	if count != 0 || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %d %v", count, err)
	}
	if first.calls != 0 || second.calls != 0 {
		t.Fatalf("no sink should be called after cancellation")
	}
}
