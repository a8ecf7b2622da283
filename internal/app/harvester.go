package app

import (
	"context"
	"fmt"
	"time"

	"github.com/samvad-hq/fetchapi/internal/config"
	"github.com/samvad-hq/fetchapi/internal/logger"
	"github.com/samvad-hq/fetchapi/internal/pager"
	"github.com/samvad-hq/fetchapi/internal/storage"
	"github.com/samvad-hq/fetchapi/pkg/endpoints"
	"github.com/samvad-hq/fetchapi/pkg/publishers"
)

// Harvester runs the pagination loop: every interval it walks all enabled
// endpoints and publishes unseen items.
type Harvester struct {
	cfg         *config.Config
	endpointReg *endpoints.Registry
	fanout      *publishers.Fanout
	pager       *pager.Service
	interval    time.Duration
	log         logger.Logger
	store       storage.Store
}

// NewHarvester builds a harvester runtime from config files.
func NewHarvester(ctx context.Context, cfg *config.Config, log logger.Logger) (*Harvester, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	endpointReg, err := endpoints.LoadRegistry(cfg.EndpointsFile)
	if err != nil {
		return nil, fmt.Errorf("load endpoints registry: %w", err)
	}
	endpointIDs := make([]string, 0)
	for _, ep := range endpointReg.Enabled() {
		endpointIDs = append(endpointIDs, ep.ID)
	}
	log.InfoObj("endpoints registry loaded", "endpoints_meta", map[string]any{
		"count": len(endpointIDs),
		"ids":   endpointIDs,
	})

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabledPublishers := publisherReg.Enabled()
	if len(enabledPublishers) == 0 {
		return nil, fmt.Errorf("no publishers configured")
	}

	client, err := newFetchClient(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabledPublishers, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	fanout := publishers.NewFanout(pubClients)
	publisherSummaries := make([]map[string]string, 0, len(enabledPublishers))
	for _, pubCfg := range enabledPublishers {
		publisherSummaries = append(publisherSummaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(publisherSummaries),
		"publishers": publisherSummaries,
	})

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		ItemTTL:         cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"item_ttl_seconds":         int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	return &Harvester{
		cfg:         cfg,
		endpointReg: endpointReg,
		fanout:      fanout,
		pager:       pager.NewService(client, fanout, log, store),
		interval:    cfg.HarvestInterval,
		log:         log,
		store:       store,
	}, nil
}

// Run starts the harvest loop until the context is cancelled.
func (h *Harvester) Run(ctx context.Context) error {
	if h == nil || h.pager == nil {
		return fmt.Errorf("harvester is not initialized")
	}
	defer h.close()

	eps := h.endpointReg.Enabled()
	if len(eps) == 0 {
		h.log.WarnObj("no endpoints enabled; harvester idle", "endpoints_file", h.cfg.EndpointsFile)
		<-ctx.Done()
		return nil
	}

	h.log.InfoObj("harvester loop starting", "harvester_state", map[string]any{
		"endpoints_count":  len(eps),
		"publishers_count": h.fanout.Size(),
		"harvest_interval": h.interval.String(),
	})

	if err := h.runOnce(ctx, eps); err != nil {
		h.log.ErrorObj("initial harvest failed", "error", err.Error())
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.InfoObj("harvester loop exiting", "reason", ctx.Err().Error())
			return nil
		case <-ticker.C:
			if err := h.runOnce(ctx, eps); err != nil {
				h.log.ErrorObj("scheduled harvest failed", "error", err.Error())
			}
		}
	}
}

func (h *Harvester) runOnce(ctx context.Context, eps []endpoints.Endpoint) error {
	start := time.Now()
	h.log.InfoObj("harvest started", "harvest_meta", map[string]any{
		"endpoints_count": len(eps),
		"started_at":      start.UTC(),
	})
	if err := h.pager.Run(ctx, eps); err != nil {
		return err
	}
	h.log.InfoObj("harvest completed", "harvest_meta", map[string]any{
		"endpoints_count": len(eps),
		"elapsed_ms":      time.Since(start).Milliseconds(),
	})
	return nil
}

// close releases publishers and the storage backend, logging failures.
func (h *Harvester) close() {
	if err := h.fanout.Close(); err != nil {
		h.log.ErrorObj("publishers close failed", "error", err.Error())
	}
	if h.store == nil {
		return
	}
	if err := h.store.Close(); err != nil {
		h.log.ErrorObj("storage close failed", "error", err.Error())
	}
}
