package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/osse101/adlink/internal/clock"
	"github.com/osse101/adlink/internal/config"
	"github.com/osse101/adlink/internal/database"
	"github.com/osse101/adlink/internal/database/memory"
	"github.com/osse101/adlink/internal/database/postgres"
	"github.com/osse101/adlink/internal/linking"
)

// Repositories holds the storage used by the application.
// DBPool is nil for the memory driver so readiness checks pass without a database.
type Repositories struct {
	Integrations linking.Repository
	DBPool       database.Pool
}

// Close releases the database pool, if any
func (r *Repositories) Close() {
	if r.DBPool != nil {
		r.DBPool.Close()
	}
}

// InitializeRepositories creates the integration repository for the configured
// store driver. With AutoMigrate set, pending migrations run before the pool opens.
func InitializeRepositories(ctx context.Context, cfg *config.Config, c clock.Clock) (*Repositories, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		slog.Warn(LogMsgUsingMemoryStore)
		return &Repositories{Integrations: memory.NewIntegrationRepository(c)}, nil
	}

	connString := cfg.GetDBConnString()
	if cfg.AutoMigrate {
		slog.Info(LogMsgRunningMigrations)
		if err := database.Migrate(ctx, connString, database.DirectionUp); err != nil {
			return nil, fmt.Errorf("%s: %w", ErrMsgFailedMigrate, err)
		}
	}

	pool, err := database.NewPool(ctx, connString, cfg.DBMaxConns, cfg.DBMaxConnIdleTime, cfg.DBMaxConnLifetime)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ErrMsgFailedConnectDatabase, err)
	}

	slog.Info(LogMsgUsingPostgresStore)
	return &Repositories{
		Integrations: postgres.NewIntegrationRepository(pool),
		DBPool:       pool,
	}, nil
}
