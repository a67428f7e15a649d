package builder

import "fmt"

// Reason classifies why a build failed. None of these are retryable at this
// layer; the owning channel surfaces them as its outcome.
type Reason string

const (
	ToolchainUnavailable Reason = "toolchain_unavailable"
	CompilationFailed    Reason = "compilation_failed"
	TargetUnsupported    Reason = "target_unsupported"
)

// BuildError is the failure of one build invocation, carrying enough
// context (which target, and why) for a human to re-run that channel.
type BuildError struct {
	Target string
	Reason Reason
	Cause  error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build %s: %s: %v", e.Target, e.Reason, e.Cause)
}

func (e *BuildError) Unwrap() error {
	return e.Cause
}
