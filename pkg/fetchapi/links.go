package fetchapi

import (
	"net/url"
	"strings"
)

// Link is one entry of an RFC 5988 Link header.
type Link struct {
	URL    string
	Rel    string
	Params map[string]string
}

// Links maps relation names ("next", "prev", "first", "last") to their link.
type Links map[string]Link

// Next returns the rel="next" link, if any.
func (l Links) Next() (Link, bool) {
	link, ok := l["next"]
	return link, ok
}

// ParseLinks parses a raw Link header. Query parameters of each URL are copied
// into Params unless the segment sets them explicitly, so pagination values
// such as page and per_page are available directly. Segments without a rel are
// dropped; a segment listing several rels is indexed under each. Returns nil
// when nothing parses.
func ParseLinks(header string) Links {
	if strings.TrimSpace(header) == "" {
		return nil
	}
	links := Links{}
	for _, segment := range splitOutsideQuotes(header, ',') {
		link, ok := parseLinkSegment(segment)
		if !ok {
			continue
		}
		for _, rel := range strings.Fields(link.Rel) {
			entry := link
			entry.Rel = rel
			links[rel] = entry
		}
	}
	if len(links) == 0 {
		return nil
	}
	return links
}

func parseLinkSegment(segment string) (Link, bool) {
	segment = strings.TrimSpace(segment)
	if !strings.HasPrefix(segment, "<") {
		return Link{}, false
	}
	end := strings.Index(segment, ">")
	if end < 0 {
		return Link{}, false
	}
	link := Link{
		URL:    strings.TrimSpace(segment[1:end]),
		Params: map[string]string{},
	}

	for _, attr := range splitOutsideQuotes(segment[end+1:], ';') {
		key, value, found := strings.Cut(strings.TrimSpace(attr), "=")
		key = strings.ToLower(strings.TrimSpace(key))
		if !found || key == "" {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"`)
		if key == "rel" {
			link.Rel = value
			continue
		}
		link.Params[key] = value
	}
	if strings.TrimSpace(link.Rel) == "" {
		return Link{}, false
	}

	if u, err := url.Parse(link.URL); err == nil {
		for key, values := range u.Query() {
			if _, set := link.Params[key]; !set && len(values) > 0 {
				link.Params[key] = values[0]
			}
		}
	}
	return link, true
}

// splitOutsideQuotes splits s on sep, ignoring separators inside double quotes
// or angle brackets.
func splitOutsideQuotes(s string, sep rune) []string {
	var (
		parts    []string
		inQuotes bool
		inURL    bool
		start    int
	)
	for i, r := range s {
		switch {
		case r == '"' && !inURL:
			inQuotes = !inQuotes
		case r == '<' && !inQuotes:
			inURL = true
		case r == '>' && !inQuotes:
			inURL = false
		case r == sep && !inQuotes && !inURL:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}
