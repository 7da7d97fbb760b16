package pubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisPubSub relays messages through a Redis-compatible server so tooling
// outside the process (editor plugins, other dev servers) sees the events.
type RedisPubSub struct {
	client      *redis.Client
	bufferSize  int
	subscribers map[string][]chan Message
	mu          sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewRedisPubSub connects to url (redis://[password@]host:port[/db]) and
// checks the connection.
func NewRedisPubSub(ctx context.Context, url string, bufferSize int) (*RedisPubSub, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}

	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	log.Info().Str("addr", opts.Addr).Msg("Connected to Redis for event relay")

	runCtx, cancel := context.WithCancel(context.Background())
	return &RedisPubSub{
		client:      client,
		bufferSize:  bufferSize,
		subscribers: make(map[string][]chan Message),
		ctx:         runCtx,
		cancel:      cancel,
	}, nil
}

// Publish sends a message to all subscribers of a channel.
func (r *RedisPubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	return r.client.Publish(ctx, channel, payload).Err()
}

// Subscribe returns a channel that receives messages published to the given channel.
func (r *RedisPubSub) Subscribe(ctx context.Context, channel string) (<-chan Message, error) {
	sub := r.client.Subscribe(r.ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	ch := make(chan Message, r.bufferSize)
	r.mu.Lock()
	r.subscribers[channel] = append(r.subscribers[channel], ch)
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			r.unsubscribe(channel, ch)
			_ = sub.Close()
		}()

		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case ch <- Message{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
				default:
					log.Warn().Str("channel", channel).Msg("Event subscriber channel full, dropping message")
				}
			}
		}
	}()

	return ch, nil
}

func (r *RedisPubSub) unsubscribe(channel string, ch chan Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.subscribers[channel]
	for i, sub := range subs {
		if sub == ch {
			r.subscribers[channel] = append(subs[:i], subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Close stops all subscriptions and closes the client.
func (r *RedisPubSub) Close() error {
	r.cancel()
	r.wg.Wait()

	err := r.client.Close()
	log.Debug().Msg("Redis event relay closed")
	return err
}
