package producer

import "time"

type Option func(*Producer)

func ConnAttempts(attempts int) Option {
	return func(p *Producer) {
		p.connAttempts = attempts
	}
}

func ConnTimeout(timeout time.Duration) Option {
	return func(p *Producer) {
		p.connTimeout = timeout
	}
}

// Topic sets the default topic. Messages that carry their own topic must not
// be written through a writer with a topic set.
func Topic(topic string) Option {
	return func(p *Producer) {
		p.topic = topic
	}
}

func BatchTimeout(timeout time.Duration) Option {
	return func(p *Producer) {
		p.batchTimeout = timeout
	}
}

func MaxAttempts(attempts int) Option {
	return func(p *Producer) {
		p.maxAttempts = attempts
	}
}
