package app

import (
	"errors"
	"testing"
	"time"

	"github.com/nchanged/gridwatch/internal/buffer"
)

func TestNewContextRejectsBadCapacity(t *testing.T) {
	if _, err := NewContext(0, time.Now()); !errors.Is(err, buffer.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestRollover(t *testing.T) {
	loc := time.FixedZone("test", -5*3600)
	start := time.Date(2024, 6, 1, 8, 0, 0, 0, loc)
	c, err := NewContext(4, start)
	if err != nil {
		t.Fatal(err)
	}
	first := c.Combined()
	first.Push(buffer.Sample{X: 1, Y: 1})

	if c.Rollover(start.Add(15 * time.Hour)) {
		t.Fatal("rolled over within the same day")
	}
	if c.Rollover(start.Add(-time.Hour)) {
		t.Fatal("rolled over into the past")
	}

	next := time.Date(2024, 6, 2, 0, 0, 1, 0, loc)
	if !c.Rollover(next) {
		t.Fatal("expected rollover on the next day")
	}
	if c.Combined() == first {
		t.Fatal("buffer not replaced")
	}
	if c.Combined().Len() != 0 || c.Combined().Cap() != 4 {
		t.Fatalf("new buffer len=%d cap=%d", c.Combined().Len(), c.Combined().Cap())
	}
	if want := time.Date(2024, 6, 2, 0, 0, 0, 0, loc); !c.Day().Equal(want) {
		t.Fatalf("Day=%v, want %v", c.Day(), want)
	}
	if first.Len() != 1 {
		t.Fatal("old buffer was modified")
	}
}
