// Package repo selects and builds the catalog repository backend.
package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cuihairu/gamelib/internal/db"
	"github.com/cuihairu/gamelib/internal/ports"
	"github.com/cuihairu/gamelib/internal/repo/gorm/catalog"
	"github.com/cuihairu/gamelib/internal/repo/memory"
)

type Kind string

const (
	KindMemory   Kind = "memory"
	KindDatabase Kind = "database"
)

// ParseKind accepts memory|database, plus the persistent/db aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "memory", "mem":
		return KindMemory, nil
	case "database", "persistent", "db":
		return KindDatabase, nil
	}
	return "", fmt.Errorf("unknown repository kind %q (want memory|database)", s)
}

type Config struct {
	Kind     Kind
	Database db.Config
	Logger   *slog.Logger
}

// Open builds the backend selected by cfg. The returned shutdown func
// releases everything the backend holds.
func Open(ctx context.Context, cfg Config) (ports.Repository, func() error, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	switch cfg.Kind {
	case KindMemory, "":
		r := memory.NewRepo()
		log.Debug("repository opened", "kind", KindMemory)
		return r, r.Close, nil
	case KindDatabase:
		gdb, err := db.Open(cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		if err := catalog.AutoMigrate(gdb); err != nil {
			_ = db.Close(gdb)
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		r := catalog.NewRepo(gdb, catalog.WithLogger(log))
		if err := r.ResetSession(ctx); err != nil {
			_ = db.Close(gdb)
			return nil, nil, err
		}
		log.Debug("repository opened", "kind", KindDatabase, "driver", cfg.Database.Driver)
		shutdown := func() error { return errors.Join(r.Close(), db.Close(gdb)) }
		return r, shutdown, nil
	}
	return nil, nil, fmt.Errorf("unknown repository kind %q", cfg.Kind)
}
