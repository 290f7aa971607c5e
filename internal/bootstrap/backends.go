// Package bootstrap opens the storage backends named by the configuration and
// hands out repositories over them. It is shared by the api, worker and replay
// binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/dgraph-io/badger/v4"

	"export-consortium/internal/config"
	"export-consortium/internal/domain"
	"export-consortium/internal/forwarding"
	"export-consortium/internal/notify"
	"export-consortium/internal/storage"
)

const (
	nsExports            = "exports"
	nsInboxes            = "notification-inboxes"
	nsPreferences        = "notification-preferences"
	nsConsumed           = "consumed-events"
	nsIntake             = "handoff-intake"
	NamespaceDeadLetters = "dead-letters"
)

type Backends struct {
	cfg      config.Config
	postgres *storage.PostgresDB
	badger   *badger.DB
	minio    *storage.MinioStore
}

// Open connects only to the backends the configuration selects.
func Open(ctx context.Context, cfg config.Config) (*Backends, error) {
	b := &Backends{cfg: cfg}
	uses := func(backend string) bool {
		return cfg.StoreBackend == backend || cfg.DeadLetterBackend == backend
	}

	if uses(config.StorePostgres) {
		db, err := storage.NewPostgresDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.postgres = db
		if err := db.Ping(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("postgres ping: %w", err)
		}
		if err := db.EnsureSchema(ctx); err != nil {
			b.Close()
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
	}
	if uses(config.StoreBadger) {
		db, err := storage.OpenBadger(cfg.BadgerPath)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("open badger %q: %w", cfg.BadgerPath, err)
		}
		b.badger = db
	}
	if uses(config.StoreMinio) {
		store, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL, cfg.MinioBucket)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect minio: %w", err)
		}
		b.minio = store
	}
	return b, nil
}

func (b *Backends) Close() {
	if b.badger != nil {
		if err := b.badger.Close(); err != nil {
			log.Printf("badger_close_failed err=%v", err)
		}
	}
	if b.postgres != nil {
		if err := b.postgres.Close(); err != nil {
			log.Printf("postgres_close_failed err=%v", err)
		}
	}
}

func (b *Backends) Records() storage.Repository[domain.ExportRecord] {
	return repository[domain.ExportRecord](b, b.cfg.StoreBackend, nsExports)
}

func (b *Backends) NotifyStores() notify.Stores {
	return notify.Stores{
		Inboxes:     repository[notify.Inbox](b, b.cfg.StoreBackend, nsInboxes),
		Preferences: repository[notify.Preferences](b, b.cfg.StoreBackend, nsPreferences),
		Consumed:    repository[notify.ConsumedEvent](b, b.cfg.StoreBackend, nsConsumed),
	}
}

func (b *Backends) Intake() storage.Repository[forwarding.Handoff] {
	return repository[forwarding.Handoff](b, b.cfg.StoreBackend, nsIntake)
}

func (b *Backends) DeadLetters() *forwarding.Sink {
	return forwarding.NewSink(repository[forwarding.DeadLetter](b, b.cfg.DeadLetterBackend, NamespaceDeadLetters))
}

// Minio is nil unless a minio backend was selected.
func (b *Backends) Minio() *storage.MinioStore { return b.minio }

// Ping checks the network backends. Embedded and in-memory stores are always ready.
func (b *Backends) Ping(ctx context.Context) error {
	var errs []error
	if b.postgres != nil {
		if err := b.postgres.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	if b.minio != nil {
		if _, err := b.minio.Client().BucketExists(ctx, b.minio.Bucket()); err != nil {
			errs = append(errs, fmt.Errorf("minio: %w", err))
		}
	}
	return errors.Join(errs...)
}

func repository[T any](b *Backends, backend, namespace string) storage.Repository[T] {
	switch backend {
	case config.StorePostgres:
		return storage.NewPostgresRepository[T](b.postgres, namespace)
	case config.StoreBadger:
		return storage.NewBadgerRepository[T](b.badger, namespace)
	case config.StoreMinio:
		return storage.NewMinioRepository[T](b.minio, namespace)
	}
	return storage.NewMemoryRepository[T]()
}
