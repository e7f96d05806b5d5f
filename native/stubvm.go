//go:build cgo && (linux || darwin)

package native

/*
#include <stddef.h>
#include <stdint.h>

#define JVMA_STUB_ENV ((uintptr_t)0xe0e0)

static void* jvma_stub_table[8];
static void* jvma_stub_vm[1];
static __thread int32_t jvma_stub_attached;
static int32_t jvma_stub_attach_rc;
static int32_t jvma_stub_version;
static int32_t jvma_stub_attaches;
static int32_t jvma_stub_detaches;

static int32_t jvma_stub_attach(void* vm, void** penv, void* args) {
	(void)args;
	if (vm != (void*)jvma_stub_vm) {
		return -6;
	}
	int32_t rc = __atomic_exchange_n(&jvma_stub_attach_rc, 0, __ATOMIC_SEQ_CST);
	if (rc != 0) {
		return rc;
	}
	jvma_stub_attached = 1;
	__atomic_fetch_add(&jvma_stub_attaches, 1, __ATOMIC_SEQ_CST);
	*penv = (void*)JVMA_STUB_ENV;
	return 0;
}

static int32_t jvma_stub_detach(void* vm) {
	if (vm != (void*)jvma_stub_vm) {
		return -6;
	}
	jvma_stub_attached = 0;
	__atomic_fetch_add(&jvma_stub_detaches, 1, __ATOMIC_SEQ_CST);
	return 0;
}

static int32_t jvma_stub_get_env(void* vm, void** penv, int32_t version) {
	if (vm != (void*)jvma_stub_vm) {
		return -6;
	}
	__atomic_store_n(&jvma_stub_version, version, __ATOMIC_SEQ_CST);
	if (version != 0x00010006 && version != 0x00010008) {
		*penv = NULL;
		return -3;
	}
	if (!jvma_stub_attached) {
		*penv = NULL;
		return -2;
	}
	*penv = (void*)JVMA_STUB_ENV;
	return 0;
}

static uintptr_t jvma_stub_init(void) {
	__atomic_store_n(&jvma_stub_attach_rc, 0, __ATOMIC_SEQ_CST);
	__atomic_store_n(&jvma_stub_version, 0, __ATOMIC_SEQ_CST);
	__atomic_store_n(&jvma_stub_attaches, 0, __ATOMIC_SEQ_CST);
	__atomic_store_n(&jvma_stub_detaches, 0, __ATOMIC_SEQ_CST);
	jvma_stub_table[4] = (void*)jvma_stub_attach;
	jvma_stub_table[5] = (void*)jvma_stub_detach;
	jvma_stub_table[6] = (void*)jvma_stub_get_env;
	jvma_stub_vm[0] = (void*)jvma_stub_table;
	return (uintptr_t)jvma_stub_vm;
}

static void jvma_stub_fail_attach(int32_t rc) {
	__atomic_store_n(&jvma_stub_attach_rc, rc, __ATOMIC_SEQ_CST);
}

static int32_t jvma_stub_last_version(void) {
	return __atomic_load_n(&jvma_stub_version, __ATOMIC_SEQ_CST);
}

static int32_t jvma_stub_is_attached(void) {
	return jvma_stub_attached;
}

static void jvma_stub_counts(int32_t* attaches, int32_t* detaches) {
	*attaches = __atomic_load_n(&jvma_stub_attaches, __ATOMIC_SEQ_CST);
	*detaches = __atomic_load_n(&jvma_stub_detaches, __ATOMIC_SEQ_CST);
}
*/
import "C"

import (
	jvmattach "github.com/wippyai/jvm-attach"
)

// stubEnv is the JNIEnv* the C stub VM hands out.
const stubEnv = jvmattach.Address(0xe0e0)

// stubJavaVM resets the process-wide C stub VM and returns its JavaVM*.
// The stub implements AttachCurrentThread, DetachCurrentThread and GetEnv
// in slots 4-6, tracks attachment per OS thread and accepts JNI 1.6 and 1.8.
func stubJavaVM() jvmattach.Address {
	return jvmattach.Address(C.jvma_stub_init())
}

// stubFailAttach makes the next stub AttachCurrentThread return rc.
func stubFailAttach(rc int32) {
	C.jvma_stub_fail_attach(C.int32_t(rc))
}

// stubLastVersion returns the version passed to the last stub GetEnv.
func stubLastVersion() int32 {
	return int32(C.jvma_stub_last_version())
}

// stubAttached reports whether the calling OS thread is attached to the stub.
func stubAttached() bool {
	return C.jvma_stub_is_attached() != 0
}

func stubCounts() (attaches, detaches int) {
	var a, d C.int32_t
	C.jvma_stub_counts(&a, &d)
	return int(a), int(d)
}
