package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/plantpal/plantpal/internal/config"
	storepkg "github.com/plantpal/plantpal/internal/store"
	"github.com/plantpal/plantpal/internal/store/memory"
	storepg "github.com/plantpal/plantpal/internal/store/postgres"
	storesqlite "github.com/plantpal/plantpal/internal/store/sqlite"
)

// NewStore returns the store.Store selected by cfg.DBDriver.
// Postgres launches an async bootstrap check and returns immediately;
// SQLite creates its schema synchronously since the file is local.
func NewStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (storepkg.Store, error) {
	switch cfg.DBDriver {
	case "memory":
		log.Warn().Msg("using in-memory store; data is lost on restart")
		return memory.New(), nil

	case "sqlite":
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("PLANTPAL_SQLITE_PATH is required when DB_DRIVER=sqlite")
		}
		db, err := storesqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := storesqlite.EnsureSchema(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Debug().Str("path", cfg.SQLitePath).Msg("sqlite store ready")
		return storesqlite.NewWithDB(db), nil

	case "postgres":
		dsn := cfg.PostgresDSN
		if dsn == "" {
			return nil, fmt.Errorf("PLANTPAL_POSTGRES_DSN is required when DB_DRIVER=postgres")
		}

		// Open connection synchronously since health checks need it immediately
		db, err := storepg.Open(dsn)
		if err != nil {
			return nil, err
		}

		go func() {
			bootstrapTimeout := time.Duration(cfg.BootstrapTimeoutSeconds) * time.Second
			bootstrapCtx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
			defer cancel()

			if err := storepg.Bootstrap(bootstrapCtx, dsn); err != nil {
				log.Warn().Err(err).Str("driver", cfg.DBDriver).Msg("store bootstrap check failed")
			} else {
				log.Debug().Str("driver", cfg.DBDriver).Msg("store bootstrap check completed")
			}
		}()

		return storepg.NewWithDB(db), nil

	default:
		return nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
	}
}
