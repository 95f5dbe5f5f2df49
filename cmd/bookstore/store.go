package main

import (
	"fmt"
	"log/slog"

	"bookstore/internal/adapter/durable"
	"bookstore/internal/adapter/filestore"
	"bookstore/internal/adapter/memory"
	"bookstore/internal/adapter/postgres"
	"bookstore/internal/adapter/sqlite"
	"bookstore/internal/config"
	"bookstore/internal/domain"
)

// storage is the opened durable backend. Sessions is KV sealed with the
// session secret, or KV itself for an unsealed memory backend.
type storage struct {
	KV       domain.KV
	Sessions domain.KV
	close    func() error
}

func (s *storage) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

func openStorage(cfg config.StorageConfig, logger *slog.Logger) (*storage, error) {
	st := &storage{}
	switch cfg.Backend {
	case "memory":
		st.KV = memory.New()
	case "file":
		fs, err := filestore.New(cfg.Path, logger)
		if err != nil {
			return nil, fmt.Errorf("open file store: %w", err)
		}
		st.KV = fs
	case "postgres":
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		st.KV, st.close = db, db.Close
	case "sqlite":
		db, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		st.KV, st.close = db, db.Close
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	st.Sessions = st.KV
	if cfg.SessionSecret != "" {
		sealed, err := durable.Sealed(st.KV, []byte(cfg.SessionSecret))
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("seal sessions: %w", err)
		}
		st.Sessions = sealed
	}
	return st, nil
}

func settingsSlot(kv domain.KV, logger *slog.Logger) *durable.Slot[domain.PublicSettings] {
	return durable.NewSlot[domain.PublicSettings](kv, durable.KeyPublicSettings, durable.WithLogger(logger))
}
