package pager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samvad-hq/fetchapi/internal/domain"
	"github.com/samvad-hq/fetchapi/pkg/endpoints"
	"github.com/samvad-hq/fetchapi/pkg/publishers"
)

// Stats summarizes one endpoint pass.
type Stats struct {
	Pages     int
	Items     int
	Published int
	Skipped   int
	// Truncated is set when max_pages stopped the walk before the last page.
	Truncated bool
}

// EndpointProcessor walks one endpoint's pages and publishes unseen items.
type EndpointProcessor struct {
	fetcher   PageFetcher
	publisher EventPublisher
	log       Logger
	deduper   Deduper
}

// NewEndpointProcessor wires a processor. A nil deduper publishes everything.
func NewEndpointProcessor(fetcher PageFetcher, pub EventPublisher, log Logger, deduper Deduper) *EndpointProcessor {
	if log == nil {
		log = noopLogger{}
	}
	return &EndpointProcessor{
		fetcher:   fetcher,
		publisher: pub,
		log:       log,
		deduper:   deduper,
	}
}

// Process follows rel="next" from ep.Path until the chain ends or MaxPages
// pages were read. Fetch failures abort the endpoint; publish failures are
// collected and returned together after the walk.
func (p *EndpointProcessor) Process(ctx context.Context, ep endpoints.Endpoint) (Stats, error) {
	var (
		stats Stats
		errs  []error
	)
	if p == nil || p.fetcher == nil {
		return stats, errors.New("endpoint processor is not initialized")
	}

	path := ep.Path
	for number := 1; ; number++ {
		page, err := p.fetcher.FetchPage(ctx, ep, path, number)
		if err != nil {
			errs = append(errs, err)
			break
		}
		stats.Pages++

		items, err := splitItems(ep, page)
		if err != nil {
			errs = append(errs, err)
			break
		}
		stats.Items += len(items)

		fresh := p.filterNewItems(ep, items)
		stats.Skipped += len(items) - len(fresh)
		published, perrs := p.publish(ctx, fresh)
		stats.Published += published
		errs = append(errs, perrs...)

		if page.Next == "" {
			break
		}
		if ep.MaxPages > 0 && number >= ep.MaxPages {
			stats.Truncated = true
			p.log.WarnObj("endpoint page limit reached", "endpoint_truncated", map[string]any{
				"endpoint_id": ep.ID,
				"max_pages":   ep.MaxPages,
				"next":        page.Next,
			})
			break
		}
		if err := sleepCtx(ctx, ep.RequestDelay()); err != nil {
			errs = append(errs, err)
			break
		}
		path = page.Next
	}

	return stats, errors.Join(errs...)
}

// filterNewItems drops items already recorded. Lookup failures keep the item.
func (p *EndpointProcessor) filterNewItems(ep endpoints.Endpoint, items []domain.Item) []domain.Item {
	if p.deduper == nil {
		return items
	}
	out := make([]domain.Item, 0, len(items))
	for _, item := range items {
		seen, err := p.deduper.SeenItem(ep.ID, item.ID)
		if err != nil {
			p.log.WarnObj("dedupe lookup failed", "dedupe_error", map[string]any{
				"endpoint_id": ep.ID,
				"item_id":     item.ID,
				"error":       err.Error(),
			})
		}
		if seen {
			continue
		}
		out = append(out, item)
	}
	return out
}

// publish sends items and marks the ones at least one publisher accepted.
func (p *EndpointProcessor) publish(ctx context.Context, items []domain.Item) (int, []error) {
	if p.publisher == nil {
		return 0, nil
	}
	var (
		published int
		errs      []error
	)
	for _, item := range items {
		successes, err := p.publisher.Publish(ctx, publishers.NewEvent(item))
		if err != nil {
			errs = append(errs, fmt.Errorf("publish item %s/%s: %w", item.EndpointID, item.ID, err))
		}
		if successes == 0 {
			continue
		}
		published++
		if p.deduper != nil {
			if err := p.deduper.MarkItem(item.EndpointID, item.ID); err != nil {
				errs = append(errs, fmt.Errorf("mark item %s/%s: %w", item.EndpointID, item.ID, err))
			}
		}
	}
	return published, errs
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type noopLogger struct{}

func (noopLogger) InfoObj(string, string, interface{})  {}
func (noopLogger) DebugObj(string, string, interface{}) {}
func (noopLogger) WarnObj(string, string, interface{})  {}
func (noopLogger) ErrorObj(string, string, interface{}) {}
