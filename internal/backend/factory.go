package backend

import (
	"context"
	"errors"
	"fmt"

	"budget/internal/amqp"
	"budget/internal/log"
	"budget/internal/storage"
	"budget/internal/store"
	"budget/internal/store/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger

	// openSQL is replaced in tests.
	openSQL func(ctx context.Context, cfg storage.Config, logger *log.Logger) (*storage.Repository, error)
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger:  logger.WithComponent(log.ComponentBackend),
		openSQL: storage.Open,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		st  store.Store
		err error
	)
	switch config.Type {
	case SQLiteBackend:
		st, err = f.createSQLBackend(ctx, storage.Config{Dialect: storage.SQLite, SQLitePath: config.SQLiteDBPath})
	case PostgresBackend:
		st, err = f.createSQLBackend(ctx, storage.Config{Dialect: storage.Postgres, PostgresDSN: config.PostgresDSN, MaxOpenConns: 10})
	case MemoryBackend:
		st, err = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	events, err := f.createEvents(config)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &BackendResult{
		Store:  st,
		Events: events,
		Cleanup: func() error {
			var errs []error
			if events != nil {
				errs = append(errs, events.Close())
			}
			errs = append(errs, st.Close())
			return errors.Join(errs...)
		},
	}, nil
}

func (f *DefaultFactory) createSQLBackend(ctx context.Context, cfg storage.Config) (store.Store, error) {
	repo, err := f.openSQL(ctx, cfg, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s repository: %w", cfg.Dialect, err)
	}
	f.logger.Info("Initialized SQL backend", "dialect", string(cfg.Dialect))
	return repo, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (store.Store, error) {
	st, err := memory.NewFromFile(config.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory backend: %w", err)
	}
	f.logger.Info("Initialized memory backend", "seed_file", config.SeedFile)
	return st, nil
}

// createEvents dials the broker. Without RequireEvents a failure is logged
// and the backend runs without publishing.
func (f *DefaultFactory) createEvents(config Config) (*amqp.Client, error) {
	if config.AMQPURL == "" {
		f.logger.Info("AMQP not configured, events disabled")
		return nil, nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
	if err != nil {
		if config.RequireEvents {
			return nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
		}
		f.logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		return nil, nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client, nil
}
