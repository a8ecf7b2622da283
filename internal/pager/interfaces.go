package pager

import (
	"context"

	"github.com/samvad-hq/fetchapi/pkg/endpoints"
	"github.com/samvad-hq/fetchapi/pkg/publishers"
)

// Page is one fetched page of an endpoint's collection.
type Page struct {
	Number int
	Body   string
	// Next is the rel="next" target, empty on the last page.
	Next string
}

// PageFetcher loads a single page. path is the endpoint path for the first
// page and the previous page's next link afterwards.
type PageFetcher interface {
	FetchPage(ctx context.Context, ep endpoints.Endpoint, path string, number int) (*Page, error)
}

// EventPublisher publishes harvested items downstream.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// Deduper remembers published items per endpoint.
type Deduper interface {
	SeenItem(endpointID, itemID string) (bool, error)
	MarkItem(endpointID, itemID string) error
}

// Logger is the logging surface the pager relies on.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}
