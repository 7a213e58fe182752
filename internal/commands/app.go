package commands

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/openlets/openlets/internal/config"
	"github.com/openlets/openlets/internal/events"
	"github.com/openlets/openlets/internal/ledger"
	"github.com/openlets/openlets/internal/logging"
	"github.com/openlets/openlets/internal/store"
	"github.com/openlets/openlets/internal/store/memstore"
	"github.com/openlets/openlets/internal/store/pgstore"
)

const dbConnectRetries = 5

// app holds the resources a command runs against.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   store.Store
	pool    *pgxpool.Pool // nil on the memory store
	pub     events.Publisher
	closers []func()
}

func openApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Resolve(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	st, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = st

	pub, err := events.New(cfg.Events, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating event publisher: %w", err)
	}
	a.pub = pub
	a.closers = append(a.closers, func() {
		if err := pub.Close(); err != nil {
			logger.Warn("closing event publisher", zap.Error(err))
		}
	})
	return a, nil
}

func (a *app) openStore(ctx context.Context) (store.Store, error) {
	switch a.cfg.Store.Driver {
	case "postgres":
		s, err := a.openPostgres(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		a.logger.Warn("using in-memory store, data is lost on exit")
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", a.cfg.Store.Driver)
	}
}

func (a *app) openPostgres(ctx context.Context) (*pgstore.Store, error) {
	pool, err := pgstore.Connect(ctx, a.cfg.Store.DatabaseURL, pgstore.PoolOptions{
		MaxConns:   a.cfg.Store.MaxConns,
		MinConns:   a.cfg.Store.MinConns,
		MaxRetries: dbConnectRetries,
	}, a.logger)
	if err != nil {
		return nil, err
	}
	a.pool = pool
	s := pgstore.New(pool)
	a.closers = append(a.closers, s.Close)
	return s, nil
}

// migrate applies pending schema migrations; it is a no-op on the
// memory store.
func (a *app) migrate(ctx context.Context) ([]string, error) {
	if a.pool == nil {
		return nil, nil
	}
	return pgstore.Migrate(ctx, a.pool, a.logger)
}

func (a *app) service() *ledger.Service {
	return ledger.NewService(a.store, a.pub, a.logger, ledger.Options{
		NotificationDays: a.cfg.Ledger.NotificationDays,
		RecentDays:       a.cfg.Ledger.RecentDays,
		RecentLimit:      a.cfg.Ledger.RecentLimit,
	})
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
