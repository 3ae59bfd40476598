package store

import "sync"

// Broker fans out IDs to subscribers. Slow subscribers miss events rather
// than blocking publishers.
type Broker struct {
	mu   sync.RWMutex
	next int
	subs map[int]chan string
}

// NewBroker creates an empty Broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]chan string)}
}

// Subscribe registers a subscriber. Call the returned func to release it.
func (b *Broker) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish notifies every subscriber of id.
func (b *Broker) Publish(id string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- id:
		default:
		}
	}
}
