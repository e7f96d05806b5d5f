// Package errors provides structured error types for the jvm-attach module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the native operation name, the raw JNI result code, and
// the cause chain.
//
// A JNI call that returns anything but JNI_OK becomes a call_failed error:
//
//	if err := errors.CheckResult("AttachCurrentThread", rc); err != nil {
//		return nil, err
//	}
//
//	if cf, ok := errors.AsCallFailed(err); ok {
//		log.Printf("%s returned %d", cf.Operation, cf.Code)
//	}
//
// Use the Builder for other structured errors:
//
//	err := errors.New(errors.PhaseResolve, errors.KindNilPointer).
//		Operation("GetEnv").
//		Detail("slot %d is empty", 6).
//		Build()
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
