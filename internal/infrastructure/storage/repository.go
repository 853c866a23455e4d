package storage

import (
	"log/slog"
	"time"

	"transfertracker/internal/application"
	"transfertracker/internal/infrastructure/cache"
	"transfertracker/internal/infrastructure/mysql"
	"transfertracker/internal/infrastructure/sqlite"

	"github.com/cockroachdb/errors"
)

type Config struct {
	Driver    string
	DSN       string
	RedisAddr string
	CacheTTL  time.Duration
}

type backend interface {
	application.TransferStore
	application.StateRepository
	Close() error
}

// Repository bundles the transfer store, optionally behind the Redis query
// cache, with the checkpoint state kept in the same database.
type Repository struct {
	application.TransferStore
	application.StateRepository
	base  backend
	cache *cache.Store
}

func Open(cfg Config) (*Repository, error) {
	var (
		base backend
		err  error
	)
	switch cfg.Driver {
	case "mysql":
		base, err = mysql.NewRepository(cfg.DSN)
	case "sqlite", "":
		base, err = sqlite.NewRepository(cfg.DSN)
	default:
		return nil, errors.Newf("unsupported db driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open %s store", cfg.Driver)
	}

	repo := &Repository{
		TransferStore:   base,
		StateRepository: base,
		base:            base,
	}
	if cfg.RedisAddr == "" {
		return repo, nil
	}
	cached, err := cache.New(base, cache.Config{Addr: cfg.RedisAddr, TTL: cfg.CacheTTL})
	if err != nil {
		slog.Warn("redis cache disabled", "addr", cfg.RedisAddr, "err", err)
		return repo, nil
	}
	repo.TransferStore = cached
	repo.cache = cached
	return repo, nil
}

func (r *Repository) Close() error {
	var cacheErr error
	if r.cache != nil {
		cacheErr = r.cache.Close()
	}
	if err := r.base.Close(); err != nil {
		return err
	}
	return cacheErr
}
