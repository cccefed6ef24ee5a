// Package backend builds the storage and messaging collaborators from the
// application config.
package backend

import (
	"fmt"
	"log/slog"

	"financeflow/internal/amqp"
	"financeflow/internal/config"
	"financeflow/internal/storage"
	"financeflow/internal/store"
	"financeflow/internal/store/memory"
)

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// Result bundles the store with the optional AMQP client. Events is nil when
// no AMQP URL is configured.
type Result struct {
	Store  store.Store
	Events *amqp.Client
}

// Close releases the store and the AMQP client, keeping the first error.
func (r *Result) Close() error {
	var firstErr error
	if r.Events != nil {
		if err := r.Events.Close(); err != nil {
			firstErr = err
		}
	}
	if r.Store != nil {
		if err := r.Store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// New creates the backend named by the config. A failed AMQP connection is
// logged and skipped; events are optional.
func New(cfg *config.Config) (*Result, error) {
	backendType := BackendType(cfg.DataBackend)
	if !backendType.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", cfg.DataBackend)
	}

	var st store.Store
	switch backendType {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite repository: %w", err)
		}
		st = repo
		slog.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
	case MemoryBackend:
		st = memory.New()
		slog.Info("Initialized memory backend")
	}

	var events *amqp.Client
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			slog.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			events = client
			slog.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
		}
	}

	return &Result{Store: st, Events: events}, nil
}
