package main

import (
	"log/slog"

	"github.com/John-Robertt/texcache/internal/catalog"
	"github.com/John-Robertt/texcache/internal/config"
	"github.com/John-Robertt/texcache/internal/download"
	"github.com/John-Robertt/texcache/internal/infra/cache"
	"github.com/John-Robertt/texcache/internal/infra/httpx"
	"github.com/John-Robertt/texcache/internal/populate"
)

// newPopulator 把 catalog client、downloader 与 cache store 组装成 Populator。
func newPopulator(eff config.EffectiveConfig, logger *slog.Logger, obs populate.Observer) (*populate.Populator, error) {
	catalogHTTP, err := httpx.NewCatalogClient(eff.ProxyURL, eff.CatalogTimeout)
	if err != nil {
		return nil, err
	}
	downloadHTTP, err := httpx.NewDownloadClient(eff.ProxyURL)
	if err != nil {
		return nil, err
	}

	client := &catalog.Client{
		IndexURL:  eff.IndexURL,
		PageURL:   eff.PageURL,
		AssetType: eff.AssetType,
		HTTP:      catalogHTTP,
	}
	store := cache.New(eff.CacheDir, false)

	d := &download.Downloader{
		Store:          store,
		Resolver:       client,
		HTTP:           downloadHTTP,
		InitialBackoff: eff.InitialBackoff,
		MaxAttempts:    eff.MaxAttempts,
		Logger:         logger,
	}

	return &populate.Populator{
		Fetcher:    d,
		Resolution: eff.Resolution,
		Workers:    eff.Concurrency,
		Observer:   obs,
		Logger:     logger,
		Lister:     client,
		Store:      store,
		AssetType:  eff.AssetType,
	}, nil
}
