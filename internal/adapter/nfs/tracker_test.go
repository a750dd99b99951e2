package nfs

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTrackerFirstCallIsNotRetransmission(t *testing.T) {
	tracker := NewTransactionTracker(time.Second)
	assert.False(t, tracker.IsRetransmission(1, "10.0.0.1:700"))
}

func TestTrackerDetectsRetransmission(t *testing.T) {
	tracker := NewTransactionTracker(time.Second)

	tracker.MarkProcessed(1, "10.0.0.1:700")
	assert.True(t, tracker.IsRetransmission(1, "10.0.0.1:700"))
}

func TestTrackerKeysIncludeClient(t *testing.T) {
	tracker := NewTransactionTracker(time.Second)

	tracker.MarkProcessed(1, "10.0.0.1:700")
	assert.False(t, tracker.IsRetransmission(1, "10.0.0.2:700"), "same xid from another client is a new call")
	assert.False(t, tracker.IsRetransmission(2, "10.0.0.1:700"), "another xid from the same client is a new call")
}

func TestTrackerExpiry(t *testing.T) {
	tracker := NewTransactionTracker(20 * time.Millisecond)

	tracker.MarkProcessed(1, "10.0.0.1:700")
	assert.True(t, tracker.IsRetransmission(1, "10.0.0.1:700"))

	time.Sleep(30 * time.Millisecond)
	assert.False(t, tracker.IsRetransmission(1, "10.0.0.1:700"), "entries expire after the retention window")
}

func TestTrackerPrunesLazily(t *testing.T) {
	tracker := NewTransactionTracker(10 * time.Millisecond)

	for xid := uint32(0); xid < 100; xid++ {
		tracker.MarkProcessed(xid, "10.0.0.1:700")
	}
	time.Sleep(20 * time.Millisecond)

	// The next insertion sweeps the expired entries.
	tracker.MarkProcessed(1000, "10.0.0.1:700")

	tracker.mu.Lock()
	size := len(tracker.entries)
	tracker.mu.Unlock()
	assert.Equal(t, 1, size)
}

func TestTrackerConcurrentUse(t *testing.T) {
	tracker := NewTransactionTracker(time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for xid := uint32(0); xid < 200; xid++ {
				tracker.MarkProcessed(xid, "10.0.0.1:700")
				tracker.IsRetransmission(xid, "10.0.0.1:700")
			}
		}(i)
	}
	wg.Wait()
}

func TestTrackerDefaultWindow(t *testing.T) {
	tracker := NewTransactionTracker(0)
	assert.Equal(t, DefaultRetentionWindow, tracker.retention)
}
