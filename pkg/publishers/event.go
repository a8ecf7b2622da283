package publishers

import (
	"encoding/json"
	"time"

	"github.com/samvad-hq/fetchapi/internal/domain"
)

// Event represents the payload published downstream.
type Event struct {
	EndpointID  string          `json:"endpoint_id"`
	ItemID      string          `json:"item_id"`
	Page        int             `json:"page"`
	Item        json.RawMessage `json:"item"`
	CollectedAt time.Time       `json:"collected_at"`
}

// NewEvent wraps a harvested item.
func NewEvent(item domain.Item) Event {
	return Event{
		EndpointID:  item.EndpointID,
		ItemID:      item.ID,
		Page:        item.Page,
		Item:        item.Raw,
		CollectedAt: time.Now().UTC(),
	}
}

// attributes are the non-empty routing attributes attached to queue and topic messages.
func (e Event) attributes() map[string]string {
	attrs := make(map[string]string, 2)
	if e.EndpointID != "" {
		attrs["endpoint_id"] = e.EndpointID
	}
	if e.ItemID != "" {
		attrs["item_id"] = e.ItemID
	}
	return attrs
}
