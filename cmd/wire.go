package cmd

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/fractiz/internal/adaptation"
	"github.com/abhisek/fractiz/internal/catalog"
	"github.com/abhisek/fractiz/internal/config"
	"github.com/abhisek/fractiz/internal/lock"
	"github.com/abhisek/fractiz/internal/mastery"
	"github.com/abhisek/fractiz/internal/session"
	"github.com/abhisek/fractiz/internal/store"
	"github.com/abhisek/fractiz/internal/store/postgres"
)

// application bundles the wired services for one command invocation.
type application struct {
	catalog *catalog.Catalog
	model   *mastery.Model
	service *session.Service
	closers []func() error
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
	}
}

// buildApp loads the catalog, opens the store and lock, and builds the model,
// engine, and session service from the loaded config.
func buildApp(cmd *cobra.Command) (*application, error) {
	ctx := cmd.Context()
	app := &application{}

	cat, err := catalog.Load(resolveCatalogPath(cmd))
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	app.catalog = cat

	repo, err := openRepository(ctx, cmd)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, repo.Close)

	locker, closeLocker, err := openLocker(ctx, cfg.Lock)
	if err != nil {
		app.Close()
		return nil, err
	}
	if closeLocker != nil {
		app.closers = append(app.closers, closeLocker)
	}

	strategy, err := mastery.NewStrategy(cfg.Mastery)
	if err != nil {
		app.Close()
		return nil, err
	}
	model, err := mastery.NewModel(mastery.Options{
		Repo:             repo,
		Locker:           locker,
		Strategy:         strategy,
		KCs:              cat.KCs(),
		Ladder:           cfg.Ladder(),
		MasteryThreshold: cfg.Adaptation.MasteryThreshold,
		Logger:           logger.Named("mastery"),
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	app.model = model

	engine, err := adaptation.New(cfg.Adaptation)
	if err != nil {
		app.Close()
		return nil, err
	}

	svc, err := session.NewService(session.Options{
		Model:          model,
		Engine:         engine,
		Catalog:        cat,
		RequireSession: cfg.Session.RequireSession,
		Logger:         logger.Named("session"),
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	app.service = svc

	logger.Debug("application wired",
		zap.String("store", cfg.Store.Driver),
		zap.String("lock", cfg.Lock.Driver),
		zap.String("strategy", strategy.Name()),
		zap.Int("questions", cat.Len()),
		zap.Strings("kcs", cat.KCs()),
	)
	return app, nil
}

func openRepository(ctx context.Context, cmd *cobra.Command) (store.Repository, error) {
	switch cfg.Store.Driver {
	case config.StoreMemory:
		return store.NewMemory(), nil
	case config.StorePostgres:
		pc := postgres.DefaultConfig(cfg.Store.PostgresURL)
		if cfg.Store.MaxConns > 0 {
			pc.MaxConns = cfg.Store.MaxConns
		}
		s, err := postgres.Open(ctx, pc)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, nil
	default:
		dbPath, err := resolveDBPath(cmd)
		if err != nil {
			return nil, fmt.Errorf("resolve DB path: %w", err)
		}
		s, err := store.Open(dbPath)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		return s, nil
	}
}

func openLocker(ctx context.Context, lc config.LockConfig) (lock.Locker, func() error, error) {
	if lc.Driver != config.LockRedis {
		return lock.NewKeyedMutex(), nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     lc.RedisAddr,
		Password: lc.RedisPassword,
		DB:       lc.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", lc.RedisAddr, err)
	}
	locker := lock.NewRedisLocker(client, lock.RedisConfig{
		Prefix:     lc.Prefix,
		TTL:        lc.TTL,
		MinBackoff: lc.MinBackoff,
		MaxBackoff: lc.MaxBackoff,
	})
	return locker, client.Close, nil
}
