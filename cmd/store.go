package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/eprofos/backoffice/internal/crm"
)

func initStore(ctx context.Context) (crm.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "backoffice.db"
		}
		return crm.NewSQLite(path)
	case "postgres":
		return crm.NewPostgres(ctx, cfg.Store.DatabaseURL, &crm.PoolConfig{
			MaxConns: int32(cfg.Store.MaxConns),
			MinConns: int32(cfg.Store.MinConns),
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
