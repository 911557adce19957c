package redisclient

import "time"

type Option func(*Redis)

func ConnAttempts(attempts int) Option {
	return func(r *Redis) {
		r.connAttempts = attempts
	}
}

func ConnTimeout(timeout time.Duration) Option {
	return func(r *Redis) {
		r.connTimeout = timeout
	}
}

func PoolSize(size int) Option {
	return func(r *Redis) {
		r.poolSize = size
	}
}

func Password(password string) Option {
	return func(r *Redis) {
		r.password = password
	}
}

func DB(db int) Option {
	return func(r *Redis) {
		r.db = db
	}
}
