// Package jvmattach manages native thread attachment to a Java virtual machine
// reached only through its JNI invocation interface.
//
// Any native-side code can obtain a valid per-thread JNIEnv, run work through it,
// and have the attachment released correctly when the work returns early, fails,
// or panics, or when an outer caller already attached the thread.
//
// # Architecture Overview
//
//	jvmattach/          Root package with Address, Signature and the Platform facility
//	├── vtable/         Resolves AttachCurrentThread, DetachCurrentThread and GetEnv
//	├── vm/             Attachment manager: Perform, attach/detach, env lookup
//	├── env/            Environment wrapper handed to actions
//	├── errors/         Structured errors and JNI result code translation
//	├── native/         cgo Platform for a real JVM loaded from libjvm
//	├── vmtest/         Simulated JVM implementing Platform for tests
//	└── cmd/attachprobe Concurrency probe CLI
//
// # Quick Start
//
//	p := native.New()
//	handle, err := native.CreateJavaVM("/usr/lib/jvm/default/lib/server/libjvm.so",
//	    vm.Version1_8, []string{"-Xrs"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	machine, err := vm.New(p, handle)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = machine.Perform(func(e *env.Env) error {
//	    // e.Handle() is a valid JNIEnv* for this OS thread
//	    return nil
//	})
//
// # Thread Safety
//
// A vm.VM is safe for concurrent use by many goroutines. Attachment is a
// property of the OS thread, so Perform pins the calling goroutine to its
// thread for the duration of the action. Callers using AttachCurrentThread
// and DetachCurrentThread directly must pin the goroutine themselves with
// runtime.LockOSThread.
package jvmattach
