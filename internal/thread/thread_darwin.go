//go:build darwin && cgo

package thread

/*
#include <pthread.h>
#include <stdint.h>

static uint64_t jvma_thread_id(void) {
	uint64_t tid = 0;
	pthread_threadid_np(NULL, &tid);
	return tid;
}
*/
import "C"

// Current returns the system-wide thread id of the calling thread.
func Current() (uint64, error) {
	return uint64(C.jvma_thread_id()), nil
}
