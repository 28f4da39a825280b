package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/mkalas/centavo/internal/config"
	"github.com/mkalas/centavo/internal/connectivity"
	"github.com/mkalas/centavo/internal/engine"
	"github.com/mkalas/centavo/internal/remote"
	"github.com/mkalas/centavo/internal/service"
	"github.com/mkalas/centavo/internal/storage"
)

// app bundles everything a command needs; built once per invocation, no
// package-level singletons.
type app struct {
	engine       *engine.Engine
	store        service.Store
	connectivity *connectivity.Checker
	close        func()
}

// buildApp wires the store, remote client, connectivity checker, and sync
// engine from configuration.
func buildApp(ctx context.Context) (*app, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	} else {
		dbPath = config.ExpandPath(dbPath)
	}
	flatPath := viper.GetString("database.flat_path")
	if flatPath == "" {
		flatPath = config.DefaultFlatStorePath()
	} else {
		flatPath = config.ExpandPath(flatPath)
	}

	flat := storage.NewFlatStore(flatPath)

	var store service.Store
	sqlite, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		// The structured tier could not even open; run on the flat tier.
		slog.Warn("structured store unavailable, using flat storage", "error", err)
		store = flat
	} else {
		store = storage.NewFallbackStore(sqlite, flat)
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}

	baseURL := viper.GetString("remote.url")
	session := remote.NewTokenSession(ctx, remote.SessionConfig{
		TokenURL:     viper.GetString("remote.token_url"),
		AccessToken:  viper.GetString("remote.access_token"),
		RefreshToken: viper.GetString("remote.refresh_token"),
	})

	clientCfg := remote.DefaultConfig(baseURL, viper.GetString("remote.api_key"))
	if bs := viper.GetInt("sync.batch_size"); bs > 0 {
		clientCfg.BatchSize = bs
	}
	client, err := remote.NewClient(clientCfg, session)
	if err != nil {
		return nil, err
	}

	checker := connectivity.NewChecker(baseURL, 30*time.Second)
	// Prime the signal once so one-shot commands see the real state.
	checker.SetOnline(client.ProbeAvailability(ctx))

	eng, err := engine.New(engine.Options{
		Store:        store,
		Remote:       client,
		Connectivity: checker,
		BatchSize:    clientCfg.BatchSize,
	})
	if err != nil {
		return nil, err
	}
	eng.LoadState(ctx)

	return &app{
		engine:       eng,
		store:        store,
		connectivity: checker,
		close: func() {
			if err := store.Close(); err != nil {
				slog.Error("failed to close store", "error", err)
			}
		},
	}, nil
}
