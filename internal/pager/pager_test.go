package pager

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/samvad-hq/fetchapi/pkg/endpoints"
	"github.com/samvad-hq/fetchapi/pkg/publishers"
)

// fakeFetcher serves preset pages keyed by path.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]*Page
	err   error
	paths []string
}

func (f *fakeFetcher) FetchPage(_ context.Context, _ endpoints.Endpoint, path string, number int) (*Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
	if f.err != nil {
		return nil, f.err
	}
	page, ok := f.pages[path]
	if !ok {
		return nil, fmt.Errorf("unexpected path %s", path)
	}
	cp := *page
	cp.Number = number
	return &cp, nil
}

// fakePublisher records events and fails for one item id.
type fakePublisher struct {
	mu      sync.Mutex
	events  []publishers.Event
	errOnID string
}

func (f *fakePublisher) Publish(_ context.Context, evt publishers.Event) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
	if evt.ItemID == f.errOnID {
		return 0, errors.New("boom")
	}
	return 1, nil
}

func (f *fakePublisher) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, evt := range f.events {
		out = append(out, evt.ItemID)
	}
	return out
}

// fakeDeduper tracks seen keys.
type fakeDeduper struct {
	mu      sync.Mutex
	seen    map[string]bool
	failID  string
	failErr error
}

func (f *fakeDeduper) SeenItem(endpointID, itemID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if itemID == f.failID && f.failErr != nil {
		return false, f.failErr
	}
	return f.seen[endpointID+":"+itemID], nil
}

func (f *fakeDeduper) MarkItem(endpointID, itemID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	f.seen[endpointID+":"+itemID] = true
	return nil
}

func coursesEndpoint() endpoints.Endpoint {
	return endpoints.Endpoint{
		ID:             "courses",
		Path:           "/api/v1/courses",
		ItemIDPath:     "id",
		MaxPages:       10,
		RequestDelayMs: 1,
	}
}

func TestProcessorFollowsNextLinks(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*Page{
		"/api/v1/courses":        {Body: `[{"id":1},{"id":2}]`, Next: "/api/v1/courses?page=2"},
		"/api/v1/courses?page=2": {Body: `[{"id":3}]`},
	}}
	pub := &fakePublisher{}
	proc := NewEndpointProcessor(fetcher, pub, nil, &fakeDeduper{})

	stats, err := proc.Process(context.Background(), coursesEndpoint())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if stats.Pages != 2 || stats.Items != 3 || stats.Published != 3 || stats.Truncated {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if got := strings.Join(pub.ids(), ","); got != "1,2,3" {
		t.Fatalf("unexpected published ids %s", got)
	}
	if pub.events[2].Page != 2 || pub.events[2].EndpointID != "courses" {
		t.Fatalf("unexpected event %+v", pub.events[2])
	}
}

func TestProcessorStopsAtMaxPages(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*Page{
		"/api/v1/courses":        {Body: `[{"id":1}]`, Next: "/api/v1/courses?page=2"},
		"/api/v1/courses?page=2": {Body: `[{"id":2}]`, Next: "/api/v1/courses?page=3"},
	}}
	ep := coursesEndpoint()
	ep.MaxPages = 2

	stats, err := NewEndpointProcessor(fetcher, &fakePublisher{}, nil, nil).Process(context.Background(), ep)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if stats.Pages != 2 || !stats.Truncated {
		t.Fatalf("expected truncation after 2 pages, got %+v", stats)
	}
	if len(fetcher.paths) != 2 {
		t.Fatalf("page 3 must not be requested, got %v", fetcher.paths)
	}
}

func TestProcessorSkipsSeenItems(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*Page{
		"/api/v1/courses": {Body: `[{"id":1},{"id":2}]`},
	}}
	deduper := &fakeDeduper{seen: map[string]bool{"courses:1": true}}
	pub := &fakePublisher{}

	stats, err := NewEndpointProcessor(fetcher, pub, nil, deduper).Process(context.Background(), coursesEndpoint())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if stats.Skipped != 1 || stats.Published != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if got := pub.ids(); len(got) != 1 || got[0] != "2" {
		t.Fatalf("expected only item 2 published, got %v", got)
	}
	if !deduper.seen["courses:2"] {
		t.Fatalf("MarkItem not called for new item")
	}
}

func TestProcessorAggregatesPublishErrors(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]*Page{
		"/api/v1/courses":        {Body: `[{"id":"bad"},{"id":"good"}]`, Next: "/api/v1/courses?page=2"},
		"/api/v1/courses?page=2": {Body: `[{"id":"later"}]`},
	}}
	deduper := &fakeDeduper{}
	pub := &fakePublisher{errOnID: "bad"}

	stats, err := NewEndpointProcessor(fetcher, pub, nil, deduper).Process(context.Background(), coursesEndpoint())
	if err == nil || !strings.Contains(err.Error(), "courses/bad") {
		t.Fatalf("expected error mentioning the failed item, got %v", err)
	}
	if stats.Pages != 2 || stats.Published != 2 {
		t.Fatalf("publish failures must not stop the walk, got %+v", stats)
	}
	if deduper.seen["courses:bad"] {
		t.Fatalf("failed items must not be marked")
	}
}

func TestFilterNewItemsKeepsItemsOnLookupError(t *testing.T) {
	deduper := &fakeDeduper{
		seen:    map[string]bool{"courses:skip": true},
		failID:  "error",
		failErr: errors.New("lookup failed"),
	}
	proc := NewEndpointProcessor(&fakeFetcher{}, nil, nil, deduper)
	items, err := splitItems(coursesEndpoint(), &Page{Number: 1, Body: `[{"id":"keep"},{"id":"skip"},{"id":"error"}]`})
	if err != nil {
		t.Fatalf("splitItems: %v", err)
	}

	filtered := proc.filterNewItems(coursesEndpoint(), items)
	if len(filtered) != 2 || filtered[0].ID != "keep" || filtered[1].ID != "error" {
		t.Fatalf("unexpected filter result %#v", filtered)
	}
}

func TestProcessorFetchErrorAbortsEndpoint(t *testing.T) {
	boom := errors.New("offline")
	_, err := NewEndpointProcessor(&fakeFetcher{err: boom}, &fakePublisher{}, nil, nil).Process(context.Background(), coursesEndpoint())
	if !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestServiceRunAllStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &fakeFetcher{}
	svc := NewServiceWithFetcher(fetcher, nil, nil, nil)
	errs := svc.runAll(ctx, []endpoints.Endpoint{coursesEndpoint()})
	if len(errs) != 0 {
		t.Fatalf("expected no errors on cancelled context, got %v", errs)
	}
	if len(fetcher.paths) != 0 {
		t.Fatalf("no page should be fetched after cancellation")
	}
}

func TestServiceRunRejectsEmptyEndpoints(t *testing.T) {
	svc := NewServiceWithFetcher(&fakeFetcher{}, nil, nil, nil)
	if err := svc.Run(context.Background(), nil); err == nil {
		t.Fatalf("expected error when endpoints list empty")
	}
}

func TestServiceRunJoinsEndpointErrors(t *testing.T) {
	svc := NewServiceWithFetcher(&fakeFetcher{err: errors.New("down")}, nil, nil, nil)
	a, b := coursesEndpoint(), coursesEndpoint()
	b.ID = "users"

	err := svc.Run(context.Background(), []endpoints.Endpoint{a, b})
	if err == nil || !strings.Contains(err.Error(), "endpoint courses") || !strings.Contains(err.Error(), "endpoint users") {
		t.Fatalf("expected both endpoints in error, got %v", err)
	}
}
