package app

import (
	"context"
	"fmt"
	"net/url"

	"github.com/samvad-hq/fetchapi/internal/config"
	"github.com/samvad-hq/fetchapi/internal/logger"
	"github.com/samvad-hq/fetchapi/pkg/fetchapi"
	"github.com/samvad-hq/fetchapi/pkg/httpclient"
	"github.com/samvad-hq/fetchapi/pkg/session"
)

// newFetchClient builds the session-backed fetch client shared by both runtimes.
// When csrf_bootstrap_path is set the token is read from that page first.
func newFetchClient(ctx context.Context, cfg *config.Config, log logger.Logger) (*fetchapi.Client, error) {
	transport := httpclient.NewRestyTransport(httpclient.RestyOptions{
		Timeout: cfg.RequestTimeout,
		Origin:  cfg.DocumentURL,
	})
	sess := session.New(cfg.CredentialsMode, cfg.CSRFToken)

	if cfg.CSRFBootstrapPath != "" {
		pageURL, err := resolveAgainst(cfg.DocumentURL, cfg.CSRFBootstrapPath)
		if err != nil {
			return nil, err
		}
		if _, err := sess.Bootstrap(ctx, transport, pageURL); err != nil {
			return nil, fmt.Errorf("bootstrap csrf token: %w", err)
		}
		log.InfoObj("csrf token bootstrapped", "session_meta", map[string]any{
			"page":        pageURL,
			"credentials": cfg.CredentialsMode,
		})
	}

	client, err := fetchapi.NewClient(transport, fetchapi.Options{
		DocumentURL:    cfg.DocumentURL,
		Defaults:       sess,
		Production:     cfg.Production,
		NetworkRetries: cfg.NetworkRetries,
		Logger:         log,
	})
	if err != nil {
		return nil, fmt.Errorf("init fetch client: %w", err)
	}
	return client, nil
}

func resolveAgainst(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse document url: %w", err)
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse csrf_bootstrap_path: %w", err)
	}
	return b.ResolveReference(r).String(), nil
}
