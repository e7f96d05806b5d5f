package thread

import (
	"errors"
	"runtime"
	"sync"
	"testing"
)

func TestCurrent_StableWhenPinned(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	first, err := Current()
	if errors.Is(err, ErrUnsupported) {
		t.Skip("thread ids unsupported on this platform")
	}
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if first == 0 {
		t.Fatal("expected non-zero thread id")
	}

	for i := 0; i < 10; i++ {
		runtime.Gosched()
		got, _ := Current()
		if got != first {
			t.Fatalf("thread id changed while pinned: %d -> %d", first, got)
		}
	}
}

func TestCurrent_DistinctThreads(t *testing.T) {
	if _, err := Current(); errors.Is(err, ErrUnsupported) {
		t.Skip("thread ids unsupported on this platform")
	}

	const n = 4
	ids := make([]uint64, n)
	var ready, release sync.WaitGroup
	ready.Add(n)
	release.Add(1)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Exits locked so the thread is not handed to another goroutine.
			runtime.LockOSThread()
			ids[i], _ = Current()
			ready.Done()
			release.Wait()
		}(i)
	}
	ready.Wait()
	release.Done()
	wg.Wait()

	seen := make(map[uint64]bool)
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("thread id %d reported by two pinned goroutines", id)
		}
		seen[id] = true
	}
}
