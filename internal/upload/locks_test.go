package upload

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockArena_SerializesSameID(t *testing.T) {
	arena := newLockArena()

	const workers = 16
	const iterations = 100

	counter := 0
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				arena.acquire("session-a")
				counter++
				arena.release("session-a")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*iterations, counter)
}

func TestLockArena_DropsEntriesWhenIdle(t *testing.T) {
	arena := newLockArena()

	arena.acquire("a")
	arena.acquire("b")

	arena.mu.Lock()
	assert.Len(t, arena.locks, 2)
	arena.mu.Unlock()

	arena.release("a")
	arena.release("b")

	arena.mu.Lock()
	assert.Empty(t, arena.locks)
	arena.mu.Unlock()
}

func TestLockArena_IndependentIDs(t *testing.T) {
	arena := newLockArena()

	arena.acquire("a")

	// A different id must not block behind "a"
	done := make(chan struct{})
	go func() {
		arena.acquire("b")
		arena.release("b")
		close(done)
	}()
	<-done

	arena.release("a")
}

func TestLockArena_ReleaseUnknownIsNoop(t *testing.T) {
	arena := newLockArena()
	assert.NotPanics(t, func() { arena.release("never-acquired") })
}
