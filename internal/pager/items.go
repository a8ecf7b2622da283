package pager

import (
	"crypto/sha1" //nolint:gosec // non-cryptographic id generation
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/samvad-hq/fetchapi/internal/domain"
	"github.com/samvad-hq/fetchapi/pkg/endpoints"
)

// splitItems extracts the page's items. An empty body yields no items.
func splitItems(ep endpoints.Endpoint, page *Page) ([]domain.Item, error) {
	body := strings.TrimSpace(page.Body)
	if body == "" {
		return nil, nil
	}
	if !gjson.Valid(body) {
		return nil, fmt.Errorf("page %d: body is not valid json", page.Number)
	}

	list := gjson.Parse(body)
	if ep.ItemsPath != "" {
		list = list.Get(ep.ItemsPath)
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("page %d: items at %q are not an array", page.Number, ep.ItemsPath)
	}

	var items []domain.Item
	list.ForEach(func(_, value gjson.Result) bool {
		items = append(items, domain.Item{
			EndpointID: ep.ID,
			ID:         itemID(ep, value),
			Page:       page.Number,
			Raw:        json.RawMessage(value.Raw),
		})
		return true
	})
	return items, nil
}

// itemID reads the configured id path, falling back to a content hash.
func itemID(ep endpoints.Endpoint, value gjson.Result) string {
	if ep.ItemIDPath != "" {
		if id := strings.TrimSpace(value.Get(ep.ItemIDPath).String()); id != "" {
			return id
		}
	}
	sum := sha1.Sum([]byte(value.Raw))
	return hex.EncodeToString(sum[:])
}
