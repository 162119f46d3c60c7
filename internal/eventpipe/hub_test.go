package eventpipe

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscriber struct {
	mu   sync.Mutex
	msgs []Message
}

func (f *fakeSubscriber) Send(msg Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
}

func (f *fakeSubscriber) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func TestHubJoinDeliversSnapshotThenBroadcasts(t *testing.T) {
	h := NewHub()
	sub := &fakeSubscriber{}
	h.Join(sub, Message{Kind: MessageInitialState})

	h.Broadcast(Message{Kind: MessageSessionUpdate, SessionID: "s1"})

	require.Eventually(t, func() bool { return sub.count() == 2 }, time.Second, time.Millisecond)
}

func TestHubLeaveStopsDelivery(t *testing.T) {
	h := NewHub()
	sub := &fakeSubscriber{}
	id := h.Join(sub, Message{Kind: MessageInitialState})
	require.Eventually(t, func() bool { return sub.count() == 1 }, time.Second, time.Millisecond)

	h.Leave(id)
	h.Broadcast(Message{Kind: MessageSessionUpdate})

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, sub.count())
}

// blockingSubscriber never drains its Send calls synchronously; used
// to exercise the queue-overflow disconnect path. It blocks forever
// so the hub's internal channel buffer is the only thing absorbing
// messages before the overflow kicks in.
type blockingSubscriber struct {
	block chan struct{}
}

func (b *blockingSubscriber) Send(msg Message) {
	<-b.block
}

func TestHubDisconnectsSubscriberOnQueueOverflow(t *testing.T) {
	h := NewHub()
	sub := &blockingSubscriber{block: make(chan struct{})}
	defer close(sub.block)

	id := h.Join(sub, Message{Kind: MessageInitialState})

	for i := 0; i < QueueDepth+10; i++ {
		h.Broadcast(Message{Kind: MessageSessionUpdate})
	}

	h.mu.Lock()
	_, stillConnected := h.subs[id]
	h.mu.Unlock()
	assert.False(t, stillConnected, "subscriber should be disconnected after exceeding its queue depth")
}
