// Package endpoints loads the paginated API endpoints the harvester walks.
package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultRequestDelayMs = 500
	defaultMaxPages       = 10
)

// Endpoint describes one paginated collection. Path may be relative to the
// configured document URL and may already carry a query string.
type Endpoint struct {
	ID      string            `json:"id" yaml:"id"`
	Name    string            `json:"name" yaml:"name"`
	Path    string            `json:"path" yaml:"path"`
	Method  string            `json:"method" yaml:"method"`
	Params  map[string]any    `json:"params" yaml:"params"`
	Headers map[string]string `json:"headers" yaml:"headers"`
	// ItemsPath is a gjson path to the item array; empty means the body is the array.
	ItemsPath string `json:"items_path" yaml:"items_path"`
	// ItemIDPath is a gjson path, relative to an item, to its identifier.
	ItemIDPath     string `json:"item_id_path" yaml:"item_id_path"`
	SchemaFile     string `json:"schema_file" yaml:"schema_file"`
	MaxPages       int    `json:"max_pages" yaml:"max_pages"`
	RequestDelayMs int    `json:"request_delay_ms" yaml:"request_delay_ms"`
	Enabled        *bool  `json:"enabled" yaml:"enabled"`
}

type registryFile struct {
	Endpoints []Endpoint `json:"endpoints" yaml:"endpoints"`
}

// Registry holds endpoints loaded from a file.
type Registry struct {
	mu        sync.RWMutex
	endpoints []Endpoint
	idx       map[string]Endpoint
}

// LoadRegistry reads and validates the endpoints file (YAML or JSON by extension).
// Relative schema_file paths resolve against the endpoints file's directory.
func LoadRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("endpoints file path is empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read endpoints file: %w", err)
	}

	file, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(file.Endpoints) == 0 {
		return nil, errors.New("endpoints file contains no endpoints entries")
	}

	baseDir := filepath.Dir(path)
	reg := &Registry{
		endpoints: make([]Endpoint, 0, len(file.Endpoints)),
		idx:       make(map[string]Endpoint, len(file.Endpoints)),
	}
	for i := range file.Endpoints {
		ep := sanitizeEndpoint(file.Endpoints[i], baseDir)
		if err := validateEndpoint(ep); err != nil {
			return nil, fmt.Errorf("endpoint[%d]: %w", i, err)
		}
		if _, exists := reg.idx[ep.ID]; exists {
			return nil, fmt.Errorf("duplicate endpoint id %q", ep.ID)
		}
		reg.endpoints = append(reg.endpoints, ep)
		reg.idx[ep.ID] = ep
	}
	return reg, nil
}

func parseRegistry(data []byte, ext string) (registryFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		ext string
		fn  func([]byte, any) error
	}{
		{ext: ".yaml", fn: yaml.Unmarshal},
		{ext: ".yml", fn: yaml.Unmarshal},
		{ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var file registryFile
		if err := d.fn(data, &file); err == nil {
			return file, nil
		}
	}
	return registryFile{}, errors.New("endpoints file format not recognized (expected YAML or JSON)")
}

func sanitizeEndpoint(ep Endpoint, baseDir string) Endpoint {
	ep.ID = strings.TrimSpace(ep.ID)
	ep.Name = strings.TrimSpace(ep.Name)
	ep.Path = strings.TrimSpace(ep.Path)
	ep.Method = strings.ToUpper(strings.TrimSpace(ep.Method))
	ep.ItemsPath = strings.TrimSpace(ep.ItemsPath)
	ep.ItemIDPath = strings.TrimSpace(ep.ItemIDPath)
	ep.SchemaFile = strings.TrimSpace(ep.SchemaFile)

	if ep.Name == "" {
		ep.Name = ep.ID
	}
	if ep.Method == "" {
		ep.Method = http.MethodGet
	}
	if ep.SchemaFile != "" && !filepath.IsAbs(ep.SchemaFile) {
		ep.SchemaFile = filepath.Join(baseDir, ep.SchemaFile)
	}
	if ep.MaxPages <= 0 {
		ep.MaxPages = defaultMaxPages
	}
	if ep.RequestDelayMs <= 0 {
		ep.RequestDelayMs = defaultRequestDelayMs
	}
	if ep.Enabled == nil {
		def := true
		ep.Enabled = &def
	}
	return ep
}

func validateEndpoint(ep Endpoint) error {
	if ep.ID == "" {
		return errors.New("id is required")
	}
	if ep.Path == "" {
		return fmt.Errorf("path is required for endpoint %q", ep.ID)
	}
	if strings.ContainsAny(ep.ID, ": ") {
		return fmt.Errorf("id %q must not contain spaces or colons", ep.ID)
	}
	return nil
}

// RequestDelay returns the throttle between page requests.
func (ep Endpoint) RequestDelay() time.Duration {
	if ep.RequestDelayMs <= 0 {
		return time.Duration(defaultRequestDelayMs) * time.Millisecond
	}
	return time.Duration(ep.RequestDelayMs) * time.Millisecond
}

// EnabledValue returns the enabled flag defaulting to true.
func (ep Endpoint) EnabledValue() bool {
	return ep.Enabled == nil || *ep.Enabled
}

// All returns a copy of every loaded endpoint in file order.
func (r *Registry) All() []Endpoint {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Endpoint, len(r.endpoints))
	copy(out, r.endpoints)
	return out
}

// Enabled returns endpoints that are not switched off.
func (r *Registry) Enabled() []Endpoint {
	all := r.All()
	out := make([]Endpoint, 0, len(all))
	for _, ep := range all {
		if ep.EnabledValue() {
			out = append(out, ep)
		}
	}
	return out
}

// ByID returns the endpoint with the given id, if loaded.
func (r *Registry) ByID(id string) (Endpoint, bool) {
	if r == nil {
		return Endpoint{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	ep, ok := r.idx[strings.TrimSpace(id)]
	return ep, ok
}
