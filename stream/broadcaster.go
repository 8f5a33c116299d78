package stream

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/boardflow/deliberation"
)

// defaultWriteTimeout bounds a single subscriber write so one slow consumer
// cannot hold up the round barrier.
const defaultWriteTimeout = 5 * time.Second

// Broadcaster fans session artifacts out to subscribed connections. It
// implements deliberation.Observer and may be attached to several sessions.
// A connection whose write fails is dropped and closed.
type Broadcaster struct {
	mu           sync.RWMutex
	subscribers  map[string]EventConnection
	writeTimeout time.Duration
	logger       *zap.Logger
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		subscribers:  make(map[string]EventConnection),
		writeTimeout: defaultWriteTimeout,
		logger:       logger.With(zap.String("component", "stream_broadcaster")),
	}
}

// SetWriteTimeout overrides the per-subscriber write deadline.
func (b *Broadcaster) SetWriteTimeout(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d > 0 {
		b.writeTimeout = d
	}
}

// Subscribe registers a connection under the given id, replacing any previous
// subscription with that id.
func (b *Broadcaster) Subscribe(id string, conn EventConnection) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[id] = conn
	b.logger.Info("subscriber added", zap.String("subscriber", id))
}

// Unsubscribe removes and closes a subscription.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	conn, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
	}
	b.mu.Unlock()

	if ok {
		_ = conn.Close()
		b.logger.Info("subscriber removed", zap.String("subscriber", id))
	}
}

// SubscriberCount returns the number of live subscriptions.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// RoundSealed implements deliberation.Observer.
func (b *Broadcaster) RoundSealed(record *deliberation.RoundRecord) {
	b.broadcast(Event{
		Type:      EventRoundSealed,
		Round:     record,
		EmittedAt: time.Now(),
	})
}

// DecisionReached implements deliberation.Observer.
func (b *Broadcaster) DecisionReached(decision *deliberation.Decision) {
	b.broadcast(Event{
		Type:      EventDecisionReached,
		SessionID: decision.SessionID,
		Decision:  decision,
		EmittedAt: time.Now(),
	})
}

// broadcast writes the event to every subscriber and evicts the ones whose
// write failed.
func (b *Broadcaster) broadcast(event Event) {
	b.mu.RLock()
	timeout := b.writeTimeout
	targets := make(map[string]EventConnection, len(b.subscribers))
	for id, conn := range b.subscribers {
		targets[id] = conn
	}
	b.mu.RUnlock()

	var failed []string
	for id, conn := range targets {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		err := conn.WriteEvent(ctx, event)
		cancel()
		if err != nil {
			b.logger.Warn("dropping subscriber after failed write",
				zap.String("subscriber", id),
				zap.String("event", string(event.Type)),
				zap.Error(err),
			)
			failed = append(failed, id)
		}
	}

	for _, id := range failed {
		b.Unsubscribe(id)
	}
}

// Close drops and closes every subscription.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	subs := b.subscribers
	b.subscribers = make(map[string]EventConnection)
	b.mu.Unlock()

	for _, conn := range subs {
		_ = conn.Close()
	}
	return nil
}

var _ deliberation.Observer = (*Broadcaster)(nil)
