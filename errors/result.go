package errors

// JNI result codes returned by the invocation interface.
const (
	JNI_OK        int32 = 0
	JNI_ERR       int32 = -1
	JNI_EDETACHED int32 = -2
	JNI_EVERSION  int32 = -3
	JNI_ENOMEM    int32 = -4
	JNI_EEXIST    int32 = -5
	JNI_EINVAL    int32 = -6
)

var resultNames = map[int32]string{
	JNI_OK:        "JNI_OK",
	JNI_ERR:       "JNI_ERR",
	JNI_EDETACHED: "JNI_EDETACHED",
	JNI_EVERSION:  "JNI_EVERSION",
	JNI_ENOMEM:    "JNI_ENOMEM",
	JNI_EEXIST:    "JNI_EEXIST",
	JNI_EINVAL:    "JNI_EINVAL",
}

// ResultName returns the symbolic name of a JNI result code, or "" if unknown.
func ResultName(code int32) string {
	return resultNames[code]
}

// CheckResult translates the result of a JNI call into an error.
// It returns nil for JNI_OK and a call_failed error otherwise.
func CheckResult(operation string, code int32) error {
	if code == JNI_OK {
		return nil
	}
	return CallFailed(operation, code)
}
