package barrier

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarrier_BadParties(t *testing.T) {
	_, err := New(0)
	assert.ErrorIs(t, err, ErrBadParties)

	_, err = New(-3)
	assert.ErrorIs(t, err, ErrBadParties)
}

func TestBarrier_SingleParty(t *testing.T) {
	b, err := New(1)
	require.NoError(t, err)

	// A one-party barrier never blocks.
	done := make(chan struct{})
	go func() {
		b.Wait()
		b.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("single-party barrier blocked")
	}
}

func TestBarrier_AllArriveBeforeAnyRelease(t *testing.T) {
	const (
		parties = 4
		cycles  = 5
	)
	b, err := New(parties)
	require.NoError(t, err)
	assert.Equal(t, parties, b.Parties())

	arrived := make([]int32, cycles)
	var wg sync.WaitGroup
	for g := 0; g < parties; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := 0; c < cycles; c++ {
				atomic.AddInt32(&arrived[c], 1)
				b.Wait()
				// Released only after every party of this cycle arrived.
				if got := atomic.LoadInt32(&arrived[c]); got != parties {
					t.Errorf("cycle %d released with %d/%d arrivals", c, got, parties)
				}
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("barrier deadlocked")
	}
}

func TestBarrier_ReusableAcrossStraggler(t *testing.T) {
	b, err := New(2)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 3; i++ {
			b.Wait()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 3; i++ {
			// A slow partner must not miss the broadcast of its cycle.
			time.Sleep(10 * time.Millisecond)
			b.Wait()
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("barrier lost a cycle")
	}
}
