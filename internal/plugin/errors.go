package plugin

import (
	"github.com/samber/oops"
)

// Error codes for the installation pipeline.
const (
	CodeConfigMissing        = "CONFIG_MISSING"
	CodeNotFound             = "PLUGIN_NOT_FOUND"
	CodeAmbiguous            = "PLUGIN_AMBIGUOUS"
	CodeAborted              = "ABORTED"
	CodeBuildFailed          = "BUILD_FAILED"
	CodeArtifactMissing      = "ARTIFACT_MISSING"
	CodeSourceControlFailed  = "SOURCE_CONTROL_FAILED"
	CodeProjectNotRecognized = "PROJECT_NOT_RECOGNIZED"
	CodeCapabilityMissing    = "CAPABILITY_MISSING"
	CodeIndexUnavailable     = "INDEX_UNAVAILABLE"
	CodeIndexInvalid         = "INDEX_INVALID"
	CodeDownloadFailed       = "DOWNLOAD_FAILED"
	CodeInstallFailed        = "INSTALL_FAILED"
	CodeLoadFailed           = "LOAD_FAILED"
	CodeReinitializeFailed   = "REINITIALIZE_FAILED"
	CodeWorkspaceFailed      = "WORKSPACE_FAILED"
)

// ErrConfigMissing reports a required configuration key that has no value.
func ErrConfigMissing(key, hint string) error {
	return oops.Code(CodeConfigMissing).
		With("key", key).
		Hint(hint).
		Errorf("no value configured for %s (to set, run: plugforge config set %s <value>)", key, key)
}

// ErrAborted reports an operation the user declined. It is not a failure.
func ErrAborted(reason string) error {
	return oops.Code(CodeAborted).
		With("reason", reason).
		Errorf("aborted: %s", reason)
}

// ErrArtifactMissing reports a build or download output that is not on disk.
func ErrArtifactMissing(path string) error {
	return oops.Code(CodeArtifactMissing).
		With("path", path).
		Errorf("build artifact [%s] is missing and cannot be installed; resolve build errors and try again", path)
}

// ErrorCode returns the oops code attached to err, or "" if there is none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string)
	return code
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	return err != nil && ErrorCode(err) == code
}

// IsAborted reports whether err is a user-declined outcome rather than a failure.
func IsAborted(err error) bool {
	return HasCode(err, CodeAborted)
}
