package chat

import "sync"

// userLocks serializes message processing per user handle. The span between
// reading a session and writing it back is a critical section: without the
// lock, a gateway retry racing the original delivery could observe the same
// pre-transition state and perform the submission side effect twice.
//
// Locks are reference-counted so the map does not grow with the user base:
// an entry exists only while at least one goroutine holds or waits for it.
type userLocks struct {
	mu   sync.Mutex
	held map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{held: make(map[string]*userLock)}
}

// lock acquires the lock for handle and returns its release function.
// Waiters are served in mutex-acquisition order, which keeps one user's
// messages processed in delivery order.
func (l *userLocks) lock(handle string) func() {
	l.mu.Lock()
	entry, ok := l.held[handle]
	if !ok {
		entry = &userLock{}
		l.held[handle] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.held, handle)
		}
		l.mu.Unlock()
	}
}
