package eventpipe

import (
	"log"
	"sync"
)

// QueueDepth is the bounded send-queue depth per subscriber; exceeding
// it disconnects the subscriber rather than blocking the broadcaster.
const QueueDepth = 1024

// queuedSubscriber wraps a Subscriber with a bounded, buffered channel
// so one slow observer can never block fan-out to the others.
type queuedSubscriber struct {
	id     int
	ch     chan Message
	sub    Subscriber
	done   chan struct{}
	closed bool
}

// Hub fans domain messages out to connected subscribers.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*queuedSubscriber
}

// NewHub creates an empty fan-out hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]*queuedSubscriber)}
}

// Join registers a subscriber and starts its delivery goroutine. The
// returned id is used to Leave later. snapshot is sent immediately as
// an initial_state message, within the same lock that adds it to the
// broadcast set, so no mutation in between can be missed.
func (h *Hub) Join(sub Subscriber, snapshot Message) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	qs := &queuedSubscriber{
		id:   id,
		ch:   make(chan Message, QueueDepth),
		sub:  sub,
		done: make(chan struct{}),
	}
	h.subs[id] = qs
	go h.deliver(qs)

	qs.ch <- snapshot
	return id
}

// Leave removes a subscriber. Idempotent.
func (h *Hub) Leave(id int) {
	h.mu.Lock()
	qs, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	h.mu.Unlock()
	if ok {
		h.closeSub(qs)
	}
}

func (h *Hub) closeSub(qs *queuedSubscriber) {
	qs.closed = true
	close(qs.done)
}

// Broadcast sends msg to every connected subscriber. A subscriber
// whose queue is full is disconnected rather than blocking others.
func (h *Hub) Broadcast(msg Message) {
	h.mu.Lock()
	targets := make([]*queuedSubscriber, 0, len(h.subs))
	for _, qs := range h.subs {
		targets = append(targets, qs)
	}
	h.mu.Unlock()

	for _, qs := range targets {
		select {
		case qs.ch <- msg:
		default:
			log.Printf("eventpipe: subscriber %d queue full, disconnecting", qs.id)
			h.Leave(qs.id)
		}
	}
}

func (h *Hub) deliver(qs *queuedSubscriber) {
	for {
		select {
		case <-qs.done:
			return
		case msg := <-qs.ch:
			qs.sub.Send(msg)
		}
	}
}
