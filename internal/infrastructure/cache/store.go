package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"transfertracker/internal/application"
	"transfertracker/internal/domain"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

const (
	versionKey      = "transfertracker:transfers:version"
	keyPrefix       = "transfertracker:transfers:v"
	defaultCacheTTL = time.Hour
)

type Config struct {
	Addr string
	TTL  time.Duration
}

// Store fronts a TransferStore with a Redis query cache. Writes bump a version
// key, which orphans every cached query at once.
type Store struct {
	application.TransferStore
	client *redis.Client
	ttl    time.Duration
}

// New returns base unwrapped in behaviour when cfg.Addr is empty.
func New(base application.TransferStore, cfg Config) (*Store, error) {
	if base == nil {
		return nil, errors.New("base store is required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return &Store{TransferStore: base}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return NewWithClient(base, client, cfg.TTL), nil
}

func NewWithClient(base application.TransferStore, client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Store{TransferStore: base, client: client, ttl: ttl}
}

func (s *Store) SaveTransfers(ctx context.Context, transfers []domain.Transfer) error {
	if err := s.TransferStore.SaveTransfers(ctx, transfers); err != nil {
		return err
	}
	if len(transfers) == 0 {
		return nil
	}
	s.invalidate(ctx)
	return nil
}

func (s *Store) QueryTransfers(ctx context.Context, filter application.TransferQueryFilter) ([]domain.Transfer, error) {
	if s.client == nil {
		return s.TransferStore.QueryTransfers(ctx, filter)
	}
	version, ok := s.version(ctx)
	if !ok {
		return s.TransferStore.QueryTransfers(ctx, filter)
	}
	key := queryKey(version, filter)
	if cached, err := s.client.Get(ctx, key).Result(); err == nil {
		var transfers []domain.Transfer
		if err := json.Unmarshal([]byte(cached), &transfers); err == nil {
			return transfers, nil
		}
	}

	transfers, err := s.TransferStore.QueryTransfers(ctx, filter)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(transfers)
	if err != nil {
		return transfers, nil
	}
	_ = s.client.Set(ctx, key, payload, s.ttl).Err()
	return transfers, nil
}

func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *Store) version(ctx context.Context) (string, bool) {
	version, err := s.client.Get(ctx, versionKey).Result()
	if err == nil {
		return version, true
	}
	if errors.Is(err, redis.Nil) {
		return "0", true
	}
	return "", false
}

func (s *Store) invalidate(ctx context.Context) {
	if s.client == nil {
		return
	}
	_ = s.client.Incr(ctx, versionKey).Err()
}

func queryKey(version string, filter application.TransferQueryFilter) string {
	var b strings.Builder
	b.Grow(128)
	b.WriteString(keyPrefix)
	b.WriteString(version)
	b.WriteString(":to=")
	if filter.To != "" {
		b.WriteString(filter.To)
	} else {
		b.WriteString("any")
	}
	b.WriteString(":from=")
	if filter.From != "" {
		b.WriteString(filter.From)
	} else {
		b.WriteString("any")
	}
	return b.String()
}
