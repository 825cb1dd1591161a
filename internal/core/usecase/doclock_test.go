package usecase

import (
	"sync"
	"testing"
)

func TestDocumentLocksSerializeSameDocument(t *testing.T) {
	locks := newDocumentLocks()

	var mu sync.Mutex
	active := 0
	maxActive := 0

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock("doc-1")
			defer unlock()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Fatalf("max concurrent holders = %d, want 1", maxActive)
	}
}

func TestDocumentLocksDropEntriesWhenReleased(t *testing.T) {
	locks := newDocumentLocks()

	unlockA := locks.lock("doc-a")
	unlockB := locks.lock("doc-b")
	unlockA()
	unlockB()

	locks.mu.Lock()
	defer locks.mu.Unlock()
	if len(locks.entries) != 0 {
		t.Fatalf("entries = %d, want 0 after release", len(locks.entries))
	}
}

func TestDocumentLocksDifferentDocumentsDoNotBlock(t *testing.T) {
	locks := newDocumentLocks()

	unlockA := locks.lock("doc-a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := locks.lock("doc-b")
		unlockB()
		close(done)
	}()

	<-done
}
