// Package backend opens the league store selected by configuration.
package backend

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/okian/klapi/internal/adapters/repository"
	"github.com/okian/klapi/internal/adapters/repository/kv"
	"github.com/okian/klapi/internal/adapters/repository/snapshot"
	"github.com/okian/klapi/internal/config"
	"github.com/okian/klapi/pkg/logger"
)

// sqliteFile is the database name used when snapshot_path is a directory.
const sqliteFile = "league.db"

// Open returns the configured store. The caller owns it and must Close it.
func Open(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	log := logger.Named("backend")
	switch cfg.Backend {
	case config.BackendNATS:
		log.Info(ctx, "opening nats backend", logger.String("url", cfg.NATSURL), logger.String("prefix", cfg.NATSPrefix))
		return kv.Connect(ctx, cfg.NATSURL, cfg.NATSPrefix,
			kv.WithWriteTimeout(cfg.WriteTimeout),
			kv.WithLogger(logger.Named("kv")),
		)
	case config.BackendSnapshot:
		blob, err := openBlob(ctx, cfg)
		if err != nil {
			return nil, err
		}
		log.Info(ctx, "opening snapshot backend",
			logger.String("driver", cfg.SnapshotDriver), logger.String("path", cfg.SnapshotPath))
		return snapshot.New(blob, snapshot.WithKey(cfg.SnapshotKey)), nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", config.ErrInvalidConfig, cfg.Backend)
	}
}

func openBlob(ctx context.Context, cfg *config.Config) (snapshot.Blob, error) {
	switch cfg.SnapshotDriver {
	case config.DriverSQLite:
		path := cfg.SnapshotPath
		if filepath.Ext(path) == "" {
			path = filepath.Join(path, sqliteFile)
		}
		blob, err := snapshot.OpenSQLiteBlob(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite snapshot: %w", err)
		}
		return blob, nil
	case config.DriverFile, "":
		blob, err := snapshot.NewFileBlob(cfg.SnapshotPath)
		if err != nil {
			return nil, fmt.Errorf("open file snapshot: %w", err)
		}
		return blob, nil
	default:
		return nil, fmt.Errorf("%w: unknown snapshot driver %q", config.ErrInvalidConfig, cfg.SnapshotDriver)
	}
}
