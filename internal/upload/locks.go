package upload

import "sync"

// lockArena hands out per-session mutexes. Entries are reference counted and
// removed when the last holder releases, so the table stays bounded by the
// number of in-flight operations rather than the number of sessions ever seen.
type lockArena struct {
	mu    sync.Mutex
	locks map[string]*arenaEntry
}

type arenaEntry struct {
	mu   sync.Mutex
	refs int
}

func newLockArena() *lockArena {
	return &lockArena{locks: make(map[string]*arenaEntry)}
}

// acquire locks the entry for id, creating it if needed
func (a *lockArena) acquire(id string) {
	a.mu.Lock()
	entry, ok := a.locks[id]
	if !ok {
		entry = &arenaEntry{}
		a.locks[id] = entry
	}
	entry.refs++
	a.mu.Unlock()

	entry.mu.Lock()
}

// release unlocks the entry for id and drops it once nobody holds a reference
func (a *lockArena) release(id string) {
	a.mu.Lock()
	entry, ok := a.locks[id]
	if !ok {
		a.mu.Unlock()
		return
	}
	entry.refs--
	if entry.refs == 0 {
		delete(a.locks, id)
	}
	a.mu.Unlock()

	entry.mu.Unlock()
}
