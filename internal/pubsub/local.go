package pubsub

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// DefaultBufferSize is the per-subscriber buffer of a LocalPubSub
const DefaultBufferSize = 256

// localSubscriber is one Subscribe call. Sends never block: a subscriber that
// does not keep up loses messages.
type localSubscriber struct {
	ch     chan Message
	closed bool
	mu     sync.Mutex
}

func (s *localSubscriber) send(msg Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

func (s *localSubscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// LocalPubSub delivers messages within the process.
type LocalPubSub struct {
	subscribers map[string][]*localSubscriber
	bufferSize  int
	dropped     atomic.Int64
	mu          sync.RWMutex
}

// NewLocalPubSub creates a local pub/sub. A non-positive bufferSize means
// DefaultBufferSize.
func NewLocalPubSub(bufferSize int) *LocalPubSub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &LocalPubSub{
		subscribers: make(map[string][]*localSubscriber),
		bufferSize:  bufferSize,
	}
}

// Publish sends a message to all local subscribers of a channel.
func (l *LocalPubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	l.mu.RLock()
	subs := make([]*localSubscriber, len(l.subscribers[channel]))
	copy(subs, l.subscribers[channel])
	l.mu.RUnlock()

	msg := Message{Channel: channel, Payload: payload}
	for _, sub := range subs {
		if !sub.send(msg) {
			if n := l.dropped.Add(1); n == 1 || n%100 == 0 {
				log.Warn().Str("channel", channel).Int64("dropped", n).Msg("Slow subscriber, dropping events")
			}
		}
	}

	return nil
}

// Subscribe returns a channel that receives messages published to the given channel.
func (l *LocalPubSub) Subscribe(ctx context.Context, channel string) (<-chan Message, error) {
	sub := &localSubscriber{ch: make(chan Message, l.bufferSize)}

	l.mu.Lock()
	l.subscribers[channel] = append(l.subscribers[channel], sub)
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.unsubscribe(channel, sub)
	}()

	return sub.ch, nil
}

// Dropped returns how many deliveries were skipped because a subscriber's
// buffer was full.
func (l *LocalPubSub) Dropped() int64 {
	return l.dropped.Load()
}

// Subscribers returns the number of live subscriptions on channel.
func (l *LocalPubSub) Subscribers(channel string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.subscribers[channel])
}

func (l *LocalPubSub) unsubscribe(channel string, sub *localSubscriber) {
	l.mu.Lock()
	subs := l.subscribers[channel]
	for i, s := range subs {
		if s == sub {
			l.subscribers[channel] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(l.subscribers[channel]) == 0 {
		delete(l.subscribers, channel)
	}
	l.mu.Unlock()

	sub.close()
}

// Close releases all resources.
func (l *LocalPubSub) Close() error {
	l.mu.Lock()
	var all []*localSubscriber
	for _, subs := range l.subscribers {
		all = append(all, subs...)
	}
	l.subscribers = make(map[string][]*localSubscriber)
	l.mu.Unlock()

	for _, sub := range all {
		sub.close()
	}

	return nil
}
