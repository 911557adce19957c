package redisclient

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	_defaultConnAttempts = 10
	_defaultConnTimeout  = time.Second
	_defaultPoolSize     = 10
)

type Redis struct {
	connAttempts int
	connTimeout  time.Duration
	poolSize     int
	password     string
	db           int

	Client *redis.Client
}

func New(ctx context.Context, addr string, opts ...Option) (*Redis, error) {
	r := &Redis{
		connAttempts: _defaultConnAttempts,
		connTimeout:  _defaultConnTimeout,
		poolSize:     _defaultPoolSize,
	}

	for _, opt := range opts {
		opt(r)
	}

	r.Client = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: r.password,
		DB:       r.db,
		PoolSize: r.poolSize,
	})

	var err error
	for r.connAttempts > 0 {
		err = r.Client.Ping(ctx).Err()
		if err == nil {
			break
		}

		log.Printf("Redis is trying to connect, attempts left: %d", r.connAttempts)

		time.Sleep(r.connTimeout)

		r.connAttempts--
	}

	if err != nil {
		_ = r.Client.Close()
		return nil, fmt.Errorf("Redis - New - connAttempts == 0: %w", err)
	}

	return r, nil
}

func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}
