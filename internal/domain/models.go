package domain

import "encoding/json"

// Item is one element harvested from a paginated API endpoint.
type Item struct {
	EndpointID string
	ID         string
	// Page is the 1-based page the item was read from.
	Page int
	Raw  json.RawMessage
}
