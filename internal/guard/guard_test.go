package guard

import (
	"sync"
	"testing"
)

func TestTryAcquireRelease(t *testing.T) {
	r := NewRegistry()

	if !r.TryAcquire("sess-1") {
		t.Fatal("first acquire failed")
	}
	if r.TryAcquire("sess-1") {
		t.Fatal("second acquire succeeded while permit held")
	}
	if !r.Held("sess-1") {
		t.Error("Held = false for acquired permit")
	}

	// A different session is independent.
	if !r.TryAcquire("sess-2") {
		t.Fatal("acquire for unrelated session failed")
	}
	if r.Len() != 2 {
		t.Errorf("Len = %d, want 2", r.Len())
	}

	r.Release("sess-1")
	if r.Held("sess-1") {
		t.Error("Held = true after release")
	}
	if !r.TryAcquire("sess-1") {
		t.Fatal("re-acquire after release failed")
	}
}

func TestRelease_NotHeld(t *testing.T) {
	r := NewRegistry()
	r.Release("never-acquired") // must not panic
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}

func TestTryAcquire_Concurrent(t *testing.T) {
	r := NewRegistry()

	const goroutines = 50
	var wg sync.WaitGroup
	won := make(chan struct{}, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.TryAcquire("sess-1") {
				won <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(won)

	winners := 0
	for range won {
		winners++
	}
	if winners != 1 {
		t.Fatalf("%d goroutines acquired the permit, want exactly 1", winners)
	}
}
