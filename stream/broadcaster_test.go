package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/boardflow/deliberation"
)

// fakeConnection records written events; fail makes every write error.
type fakeConnection struct {
	mu     sync.Mutex
	events []Event
	fail   bool
	closed bool
}

func (f *fakeConnection) WriteEvent(_ context.Context, event Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("write failed")
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeConnection) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConnection) received() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.events...)
}

func sealedRound(index int, score float64) *deliberation.RoundRecord {
	return &deliberation.RoundRecord{
		Index:    index,
		Kind:     deliberation.KindDiscussion,
		Metric:   deliberation.ConsensusMetric{Score: score, Band: deliberation.BandStrong},
		SealedAt: time.Now(),
	}
}

func TestBroadcaster_FansOutToAllSubscribers(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster(nil)
	first := &fakeConnection{}
	second := &fakeConnection{}
	b.Subscribe("first", first)
	b.Subscribe("second", second)

	b.RoundSealed(sealedRound(0, 0.8))
	b.DecisionReached(&deliberation.Decision{
		SessionID: "sess-1",
		Outcome:   deliberation.OutcomeApproved,
	})

	for _, conn := range []*fakeConnection{first, second} {
		events := conn.received()
		require.Len(t, events, 2)
		assert.Equal(t, EventRoundSealed, events[0].Type)
		require.NotNil(t, events[0].Round)
		assert.Equal(t, 0, events[0].Round.Index)
		assert.Equal(t, EventDecisionReached, events[1].Type)
		assert.Equal(t, "sess-1", events[1].SessionID)
	}
}

func TestBroadcaster_DropsFailingSubscriber(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster(nil)
	healthy := &fakeConnection{}
	broken := &fakeConnection{fail: true}
	b.Subscribe("healthy", healthy)
	b.Subscribe("broken", broken)
	require.Equal(t, 2, b.SubscriberCount())

	b.RoundSealed(sealedRound(0, 0.7))

	assert.Equal(t, 1, b.SubscriberCount())
	assert.True(t, broken.closed)
	assert.Len(t, healthy.received(), 1)

	// The survivor keeps receiving.
	b.RoundSealed(sealedRound(1, 0.75))
	assert.Len(t, healthy.received(), 2)
}

func TestBroadcaster_SubscribeReplacesSameID(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster(nil)
	old := &fakeConnection{}
	replacement := &fakeConnection{}
	b.Subscribe("client", old)
	b.Subscribe("client", replacement)
	require.Equal(t, 1, b.SubscriberCount())

	b.RoundSealed(sealedRound(0, 0.9))
	assert.Empty(t, old.received())
	assert.Len(t, replacement.received(), 1)
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster(nil)
	conn := &fakeConnection{}
	b.Subscribe("client", conn)
	b.Unsubscribe("client")

	assert.Equal(t, 0, b.SubscriberCount())
	assert.True(t, conn.closed)

	b.RoundSealed(sealedRound(0, 0.9))
	assert.Empty(t, conn.received())

	// Unknown ids are a no-op.
	b.Unsubscribe("ghost")
}

func TestBroadcaster_Close(t *testing.T) {
	t.Parallel()

	b := NewBroadcaster(nil)
	first := &fakeConnection{}
	second := &fakeConnection{}
	b.Subscribe("first", first)
	b.Subscribe("second", second)

	require.NoError(t, b.Close())
	assert.Equal(t, 0, b.SubscriberCount())
	assert.True(t, first.closed)
	assert.True(t, second.closed)
}

func TestBroadcaster_AsSessionObserver(t *testing.T) {
	t.Parallel()

	// The broadcaster satisfies the observer contract end to end: events
	// arrive in seal order followed by the decision.
	b := NewBroadcaster(nil)
	conn := &fakeConnection{}
	b.Subscribe("audit", conn)

	for i := 0; i < 3; i++ {
		b.RoundSealed(sealedRound(i, 0.6))
	}
	b.DecisionReached(&deliberation.Decision{SessionID: "sess-9", Outcome: deliberation.OutcomeDeadlocked})

	events := conn.received()
	require.Len(t, events, 4)
	for i := 0; i < 3; i++ {
		assert.Equal(t, i, events[i].Round.Index)
	}
	assert.Equal(t, EventDecisionReached, events[3].Type)
}
