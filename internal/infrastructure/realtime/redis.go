package realtime

import (
	"context"
	"sync"

	redislib "github.com/redis/go-redis/v9"
)

// RedisBus fans notifications out through Redis pub/sub so every node
// serving a user's streams sees writes made on any other node.
type RedisBus struct {
	client redislib.UniversalClient
	prefix string
}

// NewRedisBus creates a Redis-backed bus.
func NewRedisBus(client redislib.UniversalClient) *RedisBus {
	return &RedisBus{client: client, prefix: "todo:rt:"}
}

func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.client.Publish(ctx, b.prefix+topic, payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	pubsub := b.client.Subscribe(ctx, b.prefix+topic)
	// Wait for the confirmation so no publish between Subscribe and the first
	// read is lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &redisSub{pubsub: pubsub, ch: make(chan []byte, 1), done: make(chan struct{})}
	go sub.forward()
	return sub, nil
}

type redisSub struct {
	pubsub *redislib.PubSub
	ch     chan []byte
	done   chan struct{}
	once   sync.Once
	err    error
}

func (s *redisSub) forward() {
	defer close(s.ch)
	msgs := s.pubsub.Channel()
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			offer(s.ch, []byte(msg.Payload))
		case <-s.done:
			return
		}
	}
}

func (s *redisSub) C() <-chan []byte { return s.ch }

func (s *redisSub) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.err = s.pubsub.Close()
	})
	return s.err
}
