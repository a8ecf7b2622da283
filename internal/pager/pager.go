package pager

import (
	"context"
	"errors"
	"fmt"

	"github.com/samvad-hq/fetchapi/pkg/endpoints"
	"github.com/samvad-hq/fetchapi/pkg/fetchapi"
)

// Service harvests every configured endpoint.
type Service struct {
	processor *EndpointProcessor
	log       Logger
}

// NewService wires a pager over a fetch client.
func NewService(client *fetchapi.Client, pub EventPublisher, log Logger, deduper Deduper) *Service {
	return NewServiceWithFetcher(NewAPIFetcher(client), pub, log, deduper)
}

// NewServiceWithFetcher wires a pager over an arbitrary page source.
func NewServiceWithFetcher(fetcher PageFetcher, pub EventPublisher, log Logger, deduper Deduper) *Service {
	if log == nil {
		log = noopLogger{}
	}
	return &Service{
		processor: NewEndpointProcessor(fetcher, pub, log, deduper),
		log:       log,
	}
}

// Run executes one pass over eps and joins the per-endpoint failures.
func (s *Service) Run(ctx context.Context, eps []endpoints.Endpoint) error {
	if s == nil || s.processor == nil {
		return fmt.Errorf("pager service is not initialized")
	}
	if len(eps) == 0 {
		return fmt.Errorf("no endpoints configured for harvesting")
	}

	if errs := s.runAll(ctx, eps); len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// runAll stops starting new endpoints once ctx is done; shutdown is not an error.
func (s *Service) runAll(ctx context.Context, eps []endpoints.Endpoint) []error {
	errs := make([]error, 0, len(eps))

	for _, ep := range eps {
		if ctx.Err() != nil {
			break
		}
		stats, err := s.processor.Process(ctx, ep)
		if err != nil && ctx.Err() == nil {
			errs = append(errs, fmt.Errorf("endpoint %s: %w", ep.ID, err))
			s.log.ErrorObj("endpoint harvest failed", "endpoint_error", map[string]any{
				"endpoint_id": ep.ID,
				"error":       err.Error(),
			})
		}
		s.log.InfoObj("endpoint harvest completed", "endpoint_result", map[string]any{
			"endpoint_id": ep.ID,
			"pages":       stats.Pages,
			"items":       stats.Items,
			"published":   stats.Published,
			"skipped":     stats.Skipped,
			"truncated":   stats.Truncated,
		})
	}

	return errs
}
