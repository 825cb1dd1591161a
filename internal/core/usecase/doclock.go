package usecase

import "sync"

// documentLocks serializes pipeline runs per document so two concurrent
// scans cannot race on the same source artifact. Entries are reference
// counted and dropped when the last holder releases.
type documentLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newDocumentLocks() *documentLocks {
	return &documentLocks{entries: make(map[string]*lockEntry)}
}

func (l *documentLocks) lock(documentID string) (unlock func()) {
	l.mu.Lock()
	entry, ok := l.entries[documentID]
	if !ok {
		entry = &lockEntry{}
		l.entries[documentID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, documentID)
		}
		l.mu.Unlock()
	}
}
