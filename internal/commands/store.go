package commands

import (
	"context"
	"fmt"

	"github.com/hooktail-systems/hooktail/internal/cache"
	"github.com/hooktail-systems/hooktail/internal/config"
	"github.com/hooktail-systems/hooktail/internal/logging"
)

// openStore constructs the cache backend selected by the configuration.
func openStore(ctx context.Context, cfg *config.Config) (cache.Store, error) {
	log.Debug("opening cache store", logging.Backend(cfg.Cache.Backend))

	switch cfg.Cache.Backend {
	case "sqlite", "":
		return cache.OpenSQLite(cfg.Cache.Path)
	case "postgres":
		if cfg.Cache.DatabaseURL == "" {
			return nil, fmt.Errorf("cache backend postgres requires cache.database_url")
		}
		return cache.OpenPostgres(ctx, cfg.Cache.DatabaseURL)
	case "memory":
		return cache.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}
