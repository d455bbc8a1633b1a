package db

import "sync"

// Locks serializes operations per dataset name. Entries are removed once no
// goroutine holds or waits for them.
type Locks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func NewLocks() *Locks {
	return &Locks{locks: make(map[string]*lockEntry)}
}

// Lock blocks until the dataset is free and returns the matching unlock.
func (l *Locks) Lock(dataset string) (unlock func()) {
	l.mu.Lock()
	entry, ok := l.locks[dataset]
	if !ok {
		entry = &lockEntry{}
		l.locks[dataset] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, dataset)
		}
		l.mu.Unlock()
	}
}

func (l *Locks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
