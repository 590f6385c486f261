package main

import (
	"context"
	"encoding/json"
	"io"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/referral-os/directory/internal/directory"
	"github.com/referral-os/directory/internal/imports"
	"github.com/referral-os/directory/internal/manifest"
	"github.com/referral-os/directory/internal/resilience"
	"github.com/referral-os/directory/internal/store"
)

// appEnv holds the components a command works with.
type appEnv struct {
	Manifest  *manifest.Manifest
	Directory *directory.Directory
	Store     store.Store
	Imports   *imports.Service
}

// Close releases the history store, if one was opened.
func (e *appEnv) Close() {
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

func loadManifest() (*manifest.Manifest, error) {
	if cfg.Data.Manifest == "" {
		return manifest.Default(), nil
	}
	m, err := manifest.Load(cfg.Data.Manifest)
	if err != nil {
		return nil, eris.Wrap(err, "load manifest")
	}
	return m, nil
}

// initDirectory builds the directory from config. Nothing is read from disk
// until the first query.
func initDirectory() (*appEnv, error) {
	m, err := loadManifest()
	if err != nil {
		return nil, err
	}
	dir, err := directory.New(directory.Options{
		DataDir:        cfg.Data.Dir,
		Manifest:       m,
		EnrichmentFile: cfg.Data.EnrichmentFile,
		ImportDir:      cfg.Data.ImportDir,
		ImportDataset:  cfg.Data.ImportDataset,
	})
	if err != nil {
		return nil, err
	}
	return &appEnv{Manifest: m, Directory: dir}, nil
}

// storeDSN returns the history store location. SQLite defaults to a file
// next to the raw data.
func storeDSN() string {
	if cfg.Store.DatabaseURL != "" || cfg.Store.Driver == "postgres" {
		return cfg.Store.DatabaseURL
	}
	return filepath.Join(cfg.Data.Dir, "imports.db")
}

// initImportEnv builds the directory plus the migrated history store.
func initImportEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	env, err := initDirectory()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store.Driver, storeDSN())
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	migrateRetry := resilience.RetryConfig{MaxAttempts: 3, OnRetry: resilience.RetryLogger(cfg.Store.Driver, "migrate")}
	if err := resilience.Do(ctx, migrateRetry, st.Migrate); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	env.Store = st
	env.Imports = imports.NewService(env.Directory, st)
	return env, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode output")
}
