package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/samvad-hq/fetchapi/internal/app"
	"github.com/samvad-hq/fetchapi/internal/config"
	"github.com/samvad-hq/fetchapi/internal/logger"
)

type fetchFlags struct {
	method   string
	params   []string
	headers  []string
	data     string
	rawData  string
	form     []string
	noCSRF   bool
	schema   string
	all      bool
	maxPages int
}

func newRootCmd() *cobra.Command {
	var flags fetchFlags

	cmd := &cobra.Command{
		Use:   "apifetch PATH [flags]",
		Short: "Issue a request through the fetch client and print the result",
		Long: `Issue a single request against the configured document_url and print the
result as JSON. Relative paths resolve against document_url.

Examples:
  # List courses
  apifetch /api/v1/courses -p per_page=50 -p include[]=term

  # Follow every rel="next" page
  apifetch /api/v1/courses --all

  # Create a resource with a JSON body
  apifetch /api/v1/courses -X POST -d '{"name":"Biology"}'

  # Upload a file
  apifetch /api/v1/files -X POST -F name=syllabus -F file=@syllabus.pdf

  # Validate every page against a JSON Schema
  apifetch /api/v1/courses --schema schemas/courses.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, args[0], flags)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.method, "method", "X", "GET", "HTTP method")
	f.StringArrayVarP(&flags.params, "param", "p", nil, "query parameter key=value (repeat for arrays)")
	f.StringArrayVarP(&flags.headers, "header", "H", nil, "request header key=value")
	f.StringVarP(&flags.data, "data", "d", "", "JSON request body")
	f.StringVar(&flags.rawData, "raw-data", "", "request body sent verbatim")
	f.StringArrayVarP(&flags.form, "form", "F", nil, "multipart field key=value, or key=@file")
	f.BoolVar(&flags.noCSRF, "no-csrf", false, "omit the CSRF and X-Requested-With headers")
	f.StringVar(&flags.schema, "schema", "", "JSON Schema file the response must satisfy")
	f.BoolVar(&flags.all, "all", false, "follow rel=\"next\" links")
	f.IntVar(&flags.maxPages, "max-pages", 0, "page limit with --all (default 100)")
	cmd.MarkFlagsMutuallyExclusive("data", "raw-data", "form")

	return cmd
}

func runFetch(cmd *cobra.Command, path string, flags fetchFlags) error {
	opts, err := flags.options(path)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if _, err := logger.Init(cfg); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	fetcher, err := app.NewFetcher(cmd.Context(), cfg, logger.Default())
	if err != nil {
		return err
	}

	results, err := fetcher.Do(cmd.Context(), opts)
	if len(results) > 0 {
		if werr := writeResults(cmd, results); werr != nil {
			return werr
		}
	}
	return err
}

func (f fetchFlags) options(path string) (app.FetchOptions, error) {
	params, err := parseParams(f.params)
	if err != nil {
		return app.FetchOptions{}, err
	}
	headers, err := parsePairs("header", f.headers)
	if err != nil {
		return app.FetchOptions{}, err
	}
	form := map[string][]string{}
	for _, raw := range f.form {
		key, val, err := splitPair("form", raw)
		if err != nil {
			return app.FetchOptions{}, err
		}
		form[key] = append(form[key], val)
	}

	return app.FetchOptions{
		Method:     f.method,
		Path:       path,
		Params:     params,
		Headers:    headers,
		JSONBody:   f.data,
		RawBody:    f.rawData,
		Form:       form,
		OmitCSRF:   f.noCSRF,
		SchemaFile: f.schema,
		AllPages:   f.all,
		MaxPages:   f.maxPages,
	}, nil
}

// parseParams turns key=value flags into query params. A key ending in []
// or given more than once becomes an array.
func parseParams(raw []string) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	params := make(map[string]any, len(raw))
	for _, item := range raw {
		key, val, err := splitPair("param", item)
		if err != nil {
			return nil, err
		}
		key, isArray := strings.CutSuffix(key, "[]")
		switch existing := params[key].(type) {
		case nil:
			if isArray {
				params[key] = []string{val}
			} else {
				params[key] = val
			}
		case string:
			params[key] = []string{existing, val}
		case []string:
			params[key] = append(existing, val)
		}
	}
	return params, nil
}

func parsePairs(kind string, raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(raw))
	for _, item := range raw {
		key, val, err := splitPair(kind, item)
		if err != nil {
			return nil, err
		}
		out[key] = val
	}
	return out, nil
}

func splitPair(kind, raw string) (string, string, error) {
	key, val, ok := strings.Cut(raw, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("invalid %s %q (expected key=value)", kind, raw)
	}
	return key, val, nil
}

// writeResults prints a single object for one page and an array otherwise.
func writeResults(cmd *cobra.Command, results []app.PageResult) error {
	var payload any = results
	if len(results) == 1 {
		payload = results[0]
	}
	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("format output: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}
