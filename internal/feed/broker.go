// Package feed fans live summaries out to SSE and websocket clients.
package feed

import (
	"sync"

	"github.com/google/uuid"
)

const subscriberBuffer = 8

type Subscription struct {
	ID string
	C  <-chan []byte

	ch chan []byte
}

// Broker delivers each published payload to every subscriber. A subscriber
// that falls behind misses payloads rather than holding up the others.
type Broker struct {
	mu   sync.Mutex
	subs map[string]*Subscription
	last []byte
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]*Subscription)}
}

// Subscribe registers a new subscriber. The most recent payload, if any, is
// already waiting on its channel.
func (b *Broker) Subscribe() *Subscription {
	ch := make(chan []byte, subscriberBuffer)
	sub := &Subscription{ID: uuid.NewString(), C: ch, ch: ch}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.last != nil {
		ch <- b.last
	}
	b.subs[sub.ID] = sub
	return sub
}

// Unsubscribe removes the subscriber and closes its channel. Calling it more
// than once is harmless.
func (b *Broker) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub.ID]; !ok {
		return
	}
	delete(b.subs, sub.ID)
	close(sub.ch)
}

func (b *Broker) Publish(payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = payload
	for _, sub := range b.subs {
		select {
		case sub.ch <- payload:
		default:
			// drop if channel full (client too slow)
		}
	}
}

// Last returns the most recently published payload.
func (b *Broker) Last() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last
}

func (b *Broker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
