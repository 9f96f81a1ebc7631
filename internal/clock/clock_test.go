package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeClockAdvanceFiresDueWaiters(t *testing.T) {
	fc := NewFake(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))

	ch := fc.After(10 * time.Minute)
	assert.Equal(t, 1, fc.Waiters())

	fc.Advance(5 * time.Minute)
	select {
	case <-ch:
		t.Fatal("waiter fired before its deadline")
	default:
	}

	fc.Advance(5 * time.Minute)
	select {
	case <-ch:
	default:
		t.Fatal("waiter did not fire at its deadline")
	}
	assert.Equal(t, 0, fc.Waiters())
}

func TestFakeClockNonPositiveDelayFiresImmediately(t *testing.T) {
	fc := NewFake(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))

	select {
	case <-fc.After(0):
	default:
		t.Fatal("zero delay should fire immediately")
	}

	select {
	case <-fc.After(-time.Minute):
	default:
		t.Fatal("negative delay should fire immediately")
	}
}

func TestFakeClockNow(t *testing.T) {
	start := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	fc := NewFake(start)

	require.Equal(t, start, fc.Now())
	fc.Advance(90 * time.Minute)
	require.Equal(t, start.Add(90*time.Minute), fc.Now())
}

func TestRealClockNow(t *testing.T) {
	c := New()
	before := time.Now()
	now := c.Now()
	assert.False(t, now.Before(before))
}
