package sync

import (
	"sync"
)

// Topic names one kind of vault event.
type Topic string

// Vault event topics.
const (
	TopicVaultLoaded        Topic = "vault:loaded"
	TopicVaultCreated       Topic = "vault:created"
	TopicFileCreated        Topic = "vault:file-created"
	TopicItemRenamed        Topic = "vault:item-renamed"
	TopicItemDeleted        Topic = "vault:item-deleted"
	TopicItemMoved          Topic = "vault:item-moved"
	TopicStructureRefreshed Topic = "vault:structure-refreshed"
	TopicError              Topic = "vault:error"
)

// Event is one bus notification. Source names the operation that
// produced it and IDs the affected items; Err is set on TopicError only.
type Event struct {
	Topic    Topic
	Source   string
	VaultID  string
	IDs      []string
	Name     string // new name on renames and creations
	ParentID string // new parent on moves
	Err      error
}

// Bus is in-process publish/subscribe for vault events. Delivery is
// non-blocking: a subscriber that falls behind loses events rather than
// stalling the producer. The bus is advisory; no part of the sync
// protocol depends on a subscriber seeing an event.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscriber
	closed bool
}

type subscriber struct {
	topics map[Topic]bool // nil matches every topic
	ch     chan Event
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Subscribe registers interest in the given topics (none = all topics)
// and returns the delivery channel plus a cancel function. buffer bounds
// how far the subscriber may lag before events are dropped.
func (b *Bus) Subscribe(buffer int, topics ...Topic) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &subscriber{ch: make(chan Event, buffer)}
	if len(topics) > 0 {
		sub.topics = make(map[Topic]bool, len(topics))
		for _, t := range topics {
			sub.topics[t] = true
		}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub.ch)
			}
		})
	}
	return sub.ch, cancel
}

// Publish delivers e to every matching subscriber without blocking.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		if sub.topics != nil && !sub.topics[e.Topic] {
			continue
		}
		select {
		case sub.ch <- e:
		default: // subscriber buffer full, drop
		}
	}
}

// Close drops every subscriber and closes their channels. Publishing to
// a closed bus is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
