//go:build cgo && (linux || darwin)

package native

/*
#cgo linux LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdint.h>
#include <stdlib.h>

typedef struct {
	char* optionString;
	void* extraInfo;
} jvma_option;

typedef struct {
	int32_t version;
	int32_t nOptions;
	jvma_option* options;
	uint8_t ignoreUnrecognized;
} jvma_init_args;

typedef int32_t (*jvma_create_fn)(void**, void**, void*);
typedef int32_t (*jvma_created_fn)(void**, int32_t, int32_t*);

static void* jvma_dlopen(const char* path) {
	return dlopen(path, RTLD_NOW | RTLD_GLOBAL);
}

static const char* jvma_dlerror(void) {
	return dlerror();
}

static void* jvma_dlsym(void* h, const char* name) {
	dlerror();
	return dlsym(h, name);
}

static int32_t jvma_created_vms(void* fn, uintptr_t* vm) {
	void* buf[1] = { NULL };
	int32_t n = 0;
	int32_t rc = ((jvma_created_fn)fn)(buf, 1, &n);
	*vm = (rc == 0 && n > 0) ? (uintptr_t)buf[0] : 0;
	return rc;
}

static int32_t jvma_create_vm(void* fn, int32_t version, char** opts, int32_t n, uintptr_t* vm) {
	jvma_option* options = calloc(n > 0 ? n : 1, sizeof(jvma_option));
	if (options == NULL) {
		return -4;
	}
	for (int32_t i = 0; i < n; i++) {
		options[i].optionString = opts[i];
	}
	jvma_init_args args = { version, n, options, 1 };
	void* pvm = NULL;
	void* penv = NULL;
	int32_t rc = ((jvma_create_fn)fn)(&pvm, &penv, &args);
	free(options);
	*vm = (uintptr_t)pvm;
	return rc;
}
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"

	jvmattach "github.com/wippyai/jvm-attach"
	"github.com/wippyai/jvm-attach/errors"
)

var (
	libsMu sync.Mutex
	libs   = make(map[string]unsafe.Pointer)
)

// openLibrary loads libjvm once per path. A JVM cannot be unloaded, so the
// handle is never closed.
func openLibrary(path string) (unsafe.Pointer, error) {
	libsMu.Lock()
	defer libsMu.Unlock()

	if h, ok := libs[path]; ok {
		return h, nil
	}

	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	h := C.jvma_dlopen(cpath)
	if h == nil {
		return nil, errors.Wrap(errors.PhasePlatform, errors.KindInvalidInput,
			fmt.Errorf("%s", C.GoString(C.jvma_dlerror())), "dlopen "+path)
	}
	libs[path] = h
	return h, nil
}

func symbol(lib unsafe.Pointer, name string) (unsafe.Pointer, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	sym := C.jvma_dlsym(lib, cname)
	if sym == nil {
		return nil, errors.New(errors.PhasePlatform, errors.KindUnsupported).
			Operation(name).
			Detail("symbol not exported by libjvm").
			Build()
	}
	return sym, nil
}

// CreatedJavaVM returns the JavaVM already running in this process, or 0 if
// there is none, as reported by JNI_GetCreatedJavaVMs in the library at libPath.
func CreatedJavaVM(libPath string) (jvmattach.Address, error) {
	lib, err := openLibrary(libPath)
	if err != nil {
		return 0, err
	}
	fn, err := symbol(lib, "JNI_GetCreatedJavaVMs")
	if err != nil {
		return 0, err
	}

	var vm C.uintptr_t
	rc := C.jvma_created_vms(fn, &vm)
	if err := errors.CheckResult("JNI_GetCreatedJavaVMs", int32(rc)); err != nil {
		return 0, err
	}
	return jvmattach.Address(vm), nil
}

// CreateJavaVM returns the process JavaVM, creating it from the library at
// libPath with the given version and options when none is running yet. The
// calling thread becomes attached to a newly created VM.
func CreateJavaVM(libPath string, version int32, options []string) (jvmattach.Address, error) {
	existing, err := CreatedJavaVM(libPath)
	if err != nil {
		return 0, err
	}
	if existing != 0 {
		return existing, nil
	}

	lib, err := openLibrary(libPath)
	if err != nil {
		return 0, err
	}
	fn, err := symbol(lib, "JNI_CreateJavaVM")
	if err != nil {
		return 0, err
	}

	var opts **C.char
	if n := len(options); n > 0 {
		arr := C.malloc(C.size_t(n) * C.size_t(unsafe.Sizeof(uintptr(0))))
		defer C.free(arr)
		cstrs := unsafe.Slice((**C.char)(arr), n)
		for i, o := range options {
			cstrs[i] = C.CString(o)
			defer C.free(unsafe.Pointer(cstrs[i]))
		}
		opts = (**C.char)(arr)
	}

	var vm C.uintptr_t
	rc := C.jvma_create_vm(fn, C.int32_t(version), opts, C.int32_t(len(options)), &vm)
	if err := errors.CheckResult("JNI_CreateJavaVM", int32(rc)); err != nil {
		return 0, err
	}
	return jvmattach.Address(vm), nil
}
