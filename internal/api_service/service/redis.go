package service

import "context"

type RedisStorage interface {
	ListenUpd(ctx context.Context) (string, error)
}
