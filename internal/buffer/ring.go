package buffer

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrOutOfRange      = errors.New("not enough elements in buffer")
)

// Sample is a timestamped measurement. X is usually milliseconds since
// epoch and Y the measured value.
type Sample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MarshalJSON writes NaN and infinite coordinates as null.
func (s Sample) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	}{finite(s.X), finite(s.Y)})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Edit is a partial Sample. Nil fields are left untouched by EditRecent.
type Edit struct {
	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`
}

func EditX(x float64) Edit { return Edit{X: &x} }

func EditY(y float64) Edit { return Edit{Y: &y} }

// RingBuffer is a fixed-capacity circular store of samples. Once full,
// every push overwrites the oldest sample.
//
// A stored X of exactly 0 marks a slot that was never written. Such slots
// are skipped by Values, so a genuine sample at X == 0 is hidden from
// ordered reads. HighestY still scans every slot.
type RingBuffer struct {
	mu    sync.Mutex
	xs    []float64
	ys    []float64
	next  int // slot overwritten by the next push
	count int
}

func NewRingBuffer(capacity int) (*RingBuffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidArgument, capacity)
	}
	return &RingBuffer{
		xs: make([]float64, capacity),
		ys: make([]float64, capacity),
	}, nil
}

// Push appends samples in argument order, evicting the oldest when full.
func (rb *RingBuffer) Push(samples ...Sample) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	size := len(rb.xs)
	for _, s := range samples {
		rb.xs[rb.next] = s.X
		rb.ys[rb.next] = s.Y
		rb.next = (rb.next + 1) % size
		if rb.count < size {
			rb.count++
		}
	}
}

// HighestY returns the largest Y across every slot, including slots that
// were never written. The scan starts at 0, so an empty or all-negative
// buffer reports 0.
func (rb *RingBuffer) HighestY() float64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	highest := 0.0
	for _, y := range rb.ys {
		highest = math.Max(highest, y)
	}
	return highest
}

// Values returns the held samples oldest first.
func (rb *RingBuffer) Values() []Sample {
	return rb.ScaledValues(1)
}

// ScaledValues returns the held samples oldest first with every Y
// multiplied by scale. Slots whose X is 0 are skipped.
func (rb *RingBuffer) ScaledValues(scale float64) []Sample {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	size := len(rb.xs)
	start := 0
	if rb.count == size {
		start = rb.next
	}

	result := make([]Sample, 0, rb.count)
	for i := 0; i < rb.count; i++ {
		idx := (start + i) % size
		if rb.xs[idx] == 0 {
			continue
		}
		result = append(result, Sample{X: rb.xs[idx], Y: rb.ys[idx] * scale})
	}
	return result
}

// Recent returns the sample offset positions back from the newest one.
// Offset 0 is the most recent push.
func (rb *RingBuffer) Recent(offset int) (Sample, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	idx, err := rb.indexOf(offset)
	if err != nil {
		return Sample{}, err
	}
	return Sample{X: rb.xs[idx], Y: rb.ys[idx]}, nil
}

// EditRecent overwrites the fields set in e on the sample offset positions
// back from the newest one. Nothing changes when it fails.
func (rb *RingBuffer) EditRecent(offset int, e Edit) error {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	idx, err := rb.indexOf(offset)
	if err != nil {
		return err
	}
	if e.X != nil {
		rb.xs[idx] = *e.X
	}
	if e.Y != nil {
		rb.ys[idx] = *e.Y
	}
	return nil
}

// Len returns the number of valid samples, saturating at Cap.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

func (rb *RingBuffer) Cap() int {
	return len(rb.xs)
}

// indexOf must be called with rb.mu held.
func (rb *RingBuffer) indexOf(offset int) (int, error) {
	if offset < 0 || offset >= rb.count {
		return 0, fmt.Errorf("%w: offset %d, have %d", ErrOutOfRange, offset, rb.count)
	}
	size := len(rb.xs)
	return (rb.next - 1 - offset + size) % size, nil
}
