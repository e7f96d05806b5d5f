package vmtest

import "runtime"

// OnThread runs fn on a new goroutine pinned to its own OS thread and waits
// for it to return. The goroutine exits without unlocking, so the runtime
// discards the thread and no attachment left by fn is seen by later work.
//
// fn must not call t.Fatal or t.FailNow; use t.Error.
func OnThread(fn func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		runtime.LockOSThread()
		fn()
	}()
	<-done
}
