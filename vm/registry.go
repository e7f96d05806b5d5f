package vm

import (
	"sync"

	jvmattach "github.com/wippyai/jvm-attach"
)

// registry tracks the threads this manager attached itself. The flag says
// whether the thread may still be detached when its Perform scope ends.
// Threads attached by the host never appear here.
type registry struct {
	threads map[jvmattach.ThreadID]bool
	mu      sync.Mutex
}

func newRegistry() *registry {
	return &registry{
		threads: make(map[jvmattach.ThreadID]bool),
	}
}

func (r *registry) insert(tid jvmattach.ThreadID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.threads[tid] = true
}

// suppress marks tid as not detachable. It reports whether tid was present.
func (r *registry) suppress(tid jvmattach.ThreadID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.threads[tid]; !ok {
		return false
	}
	r.threads[tid] = false
	return true
}

// take removes tid and returns its detach flag.
func (r *registry) take(tid jvmattach.ThreadID) (allowed, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	allowed, ok = r.threads[tid]
	delete(r.threads, tid)
	return allowed, ok
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.threads)
}
