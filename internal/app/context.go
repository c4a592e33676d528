// Package app holds state shared between the poller and the HTTP handlers.
package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/nchanged/gridwatch/internal/buffer"
)

// Context owns the combined solar buffer for the current local day.
type Context struct {
	mu       sync.RWMutex
	combined *buffer.RingBuffer
	capacity int
	day      time.Time
}

func NewContext(capacity int, now time.Time) (*Context, error) {
	rb, err := buffer.NewRingBuffer(capacity)
	if err != nil {
		return nil, fmt.Errorf("combined buffer: %w", err)
	}
	return &Context{
		combined: rb,
		capacity: capacity,
		day:      dayOf(now),
	}, nil
}

// Combined returns the buffer for the current day. Callers must not keep it
// across a Rollover.
func (c *Context) Combined() *buffer.RingBuffer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.combined
}

func (c *Context) Capacity() int {
	return c.capacity
}

// Day is local midnight of the day the buffer belongs to.
func (c *Context) Day() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.day
}

// Rollover swaps in an empty buffer when now falls on a later local day and
// reports whether it did.
func (c *Context) Rollover(now time.Time) bool {
	day := dayOf(now)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !day.After(c.day) {
		return false
	}
	// capacity was validated in NewContext
	rb, _ := buffer.NewRingBuffer(c.capacity)
	c.combined = rb
	c.day = day
	return true
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
