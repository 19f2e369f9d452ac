package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-taskguard/app/jobs"
	"github.com/vibast-solutions/ms-go-taskguard/app/lock"
	"github.com/vibast-solutions/ms-go-taskguard/app/service"
	"github.com/vibast-solutions/ms-go-taskguard/config"
)

// deps holds the process-wide store handles and services.
type deps struct {
	cfg    *config.Config
	log    *logrus.Logger
	redis  *redis.Client
	db     *sql.DB
	tasks  *service.TaskService
	closer []func() error
}

func (d *deps) Close() {
	for i := len(d.closer) - 1; i >= 0; i-- {
		if err := d.closer[i](); err != nil {
			d.log.WithError(err).Warn("Failed to close resource")
		}
	}
}

// loadDeps connects the stores named by the configuration and registers the tasks.
func loadDeps(ctx context.Context) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}
	kind, err := lock.ParseKind(cfg.LockBackend)
	if err != nil {
		return nil, err
	}

	d := &deps{cfg: cfg, log: logger}

	d.redis = redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	d.closer = append(d.closer, d.redis.Close)
	if err := d.redis.Ping(ctx).Err(); err != nil {
		d.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	if dialect, ok := kind.Dialect(); ok {
		d.db, err = sql.Open(dialect.DriverName, cfg.LockDSN)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("open %s lock database: %w", kind, err)
		}
		d.closer = append(d.closer, d.db.Close)
		if err := d.db.PingContext(ctx); err != nil {
			d.Close()
			return nil, fmt.Errorf("ping %s lock database: %w", kind, err)
		}
	}

	stores := lock.Stores{Redis: d.redis, DB: d.db}
	opts := []lock.Option{lock.WithKeyPrefix(cfg.LockKeyPrefix), lock.WithLogger(logger)}
	provider := lock.NewProvider(func() (lock.Backend, error) {
		backend, err := lock.New(kind, stores, opts...)
		if err != nil {
			return nil, err
		}
		if table, ok := backend.(*lock.TableBackend); ok {
			if err := table.EnsureSchema(context.Background()); err != nil {
				return nil, err
			}
		}
		logger.WithField("backend", backend.Kind()).Info("Lock backend ready")
		return backend, nil
	})

	d.tasks = service.NewTaskService(service.NewGuard(provider, cfg.Tasks, logger), logger)
	if err := jobs.Register(d.tasks); err != nil {
		d.Close()
		return nil, fmt.Errorf("register tasks: %w", err)
	}
	return d, nil
}
