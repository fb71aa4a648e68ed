package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Domenick1991/salonbooking/config"
	"github.com/Domenick1991/salonbooking/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the reservation repository chosen by booking.storage plus the
// function that releases it.
type Store struct {
	Reservations repository.ReservationRepository
	Close        func()
}

// OpenStore connects to Postgres and applies the schema, or returns the
// in-process store when booking.storage is "memory".
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if cfg.Booking.Storage == config.StorageMemory {
		logger.Warn("using in-memory reservation store; data is lost on restart")
		return &Store{Reservations: repository.NewMemoryReservationRepository(), Close: func() {}}, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolCfg.MaxConns = cfg.Database.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	repo := repository.NewReservationRepository(pool)
	if err := repo.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{Reservations: repo, Close: pool.Close}, nil
}
