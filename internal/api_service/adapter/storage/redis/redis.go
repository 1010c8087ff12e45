package redis

import (
	"context"
	"github.com/langowen/oxrbank/internal/entities"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"log/slog"
	"net"
	"sync"
	"time"
)

const (
	updatesChannel   = "rates_updated"
	subscribeTimeout = 5 * time.Second
)

// Storage keeps one subscription to the update channel for its whole life,
// so notifications published between two ListenUpd calls are buffered
// instead of lost.
type Storage struct {
	rdb *redis.Client

	mu     sync.Mutex
	pubsub *redis.PubSub
	msgs   <-chan *redis.Message
}

func NewStorage(client redis.UniversalClient) *Storage {
	return &Storage{
		rdb: client.(*redis.Client),
	}
}

func InitStorage(ctx context.Context, options *redis.Options) (*Storage, error) {
	const op = "storage.redis.InitStorage"

	redisClient := redis.NewClient(options)

	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		_ = redisClient.Close()
		return nil, errors.Wrap(err, op)
	}

	storage := NewStorage(redisClient)

	return storage, nil
}

// ListenUpd blocks until the fetcher announces a newly saved rates document
// and returns its payload. The first call subscribes; later calls reuse the
// subscription.
func (s *Storage) ListenUpd(ctx context.Context) (string, error) {
	const op = "storage.redis.ListenUpd"

	msgs, err := s.subscribe(ctx)
	if err != nil {
		return "", mapError(err, op)
	}

	select {
	case <-ctx.Done():
		return "", mapError(ctx.Err(), op)
	case msg, ok := <-msgs:
		if !ok {
			return "", entities.ErrRedisCanceled
		}

		slog.Debug("Received message", "channel", msg.Channel, "payload", msg.Payload)

		return msg.Payload, nil
	}
}

func (s *Storage) subscribe(ctx context.Context) (<-chan *redis.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.msgs != nil {
		return s.msgs, nil
	}

	pubsub := s.rdb.Subscribe(ctx, updatesChannel)
	if _, err := pubsub.ReceiveTimeout(ctx, subscribeTimeout); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	s.pubsub = pubsub
	s.msgs = pubsub.Channel()

	return s.msgs, nil
}

func mapError(err error, op string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
		return entities.ErrRedisCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return entities.ErrRedisTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return entities.ErrRedisTimeout
		}
		return entities.ErrRedisCanceled
	}
	return errors.Wrap(err, op)
}

// Close drops the subscription and closes the client.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pubsub != nil {
		_ = s.pubsub.Close()
		s.pubsub = nil
	}

	return s.rdb.Close()
}
