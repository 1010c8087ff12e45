package redis

import (
	"context"
	"github.com/langowen/oxrbank/internal/currency_fetcher/cache"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"log/slog"
	"strconv"
)

const (
	DefaultKey = "oxr:rates:latest"

	// UpdatesChannel carries the timestamp of every newly saved document.
	UpdatesChannel = "rates_updated"
)

type Storage struct {
	rdb *redis.Client
	key string
}

func NewStorage(client redis.UniversalClient, key string) *Storage {
	if key == "" {
		key = DefaultKey
	}

	return &Storage{
		rdb: client.(*redis.Client),
		key: key,
	}
}

func InitStorage(ctx context.Context, options *redis.Options, key string) (*Storage, error) {
	const op = "storage.redis.InitStorage"

	redisClient := redis.NewClient(options)

	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		_ = redisClient.Close()
		return nil, errors.Wrap(err, op)
	}

	storage := NewStorage(redisClient, key)

	return storage, nil
}

// ReadDocument returns the stored rates document. A missing key is reported
// as absent, not as an error.
func (s *Storage) ReadDocument(ctx context.Context) (string, bool, error) {
	const op = "storage.redis.ReadDocument"

	text, err := s.rdb.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, op)
	}

	return text, text != "", nil
}

func (s *Storage) WriteDocument(ctx context.Context, text string) error {
	const op = "storage.redis.WriteDocument"

	if err := s.rdb.Set(ctx, s.key, text, 0).Err(); err != nil {
		return errors.Wrap(err, op)
	}

	return nil
}

// Location exposes the storage as a callback cache for the bank.
func (s *Storage) Location() cache.Callback {
	return cache.Callback{
		Read:  s.ReadDocument,
		Write: s.WriteDocument,
	}
}

func (s *Storage) PublishUpd(ctx context.Context, timestamp int64) error {
	const op = "storage.redis.PublishUpd"

	if err := s.rdb.Publish(ctx, UpdatesChannel, strconv.FormatInt(timestamp, 10)).Err(); err != nil {
		return errors.Wrap(err, op)
	}

	slog.Debug("Published rates update", "timestamp", timestamp)

	return nil
}

func (s *Storage) Close() error {
	return s.rdb.Close()
}
