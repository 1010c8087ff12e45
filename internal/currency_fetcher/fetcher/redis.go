package fetcher

import "context"

type RedisStorage interface {
	PublishUpd(ctx context.Context, timestamp int64) error
}
