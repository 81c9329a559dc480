package runner

import "fmt"

// EnvironmentSetupError reports a failure while preparing the run: missing
// binaries, checkout, dependency install, or script resolution.
type EnvironmentSetupError struct {
	Step string // "require", "checkout", "install", "resolve", "verify"
	Err  error
}

func (e *EnvironmentSetupError) Error() string {
	return fmt.Sprintf("environment setup failed (%s): %v", e.Step, e.Err)
}

func (e *EnvironmentSetupError) Unwrap() error { return e.Err }

// ScriptExecutionError reports that the script exited non-zero, timed out or
// could not be started. ExitCode is -1 when the process never exited on its
// own.
type ScriptExecutionError struct {
	Script   string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ScriptExecutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("script %s failed: %v", e.Script, e.Err)
	}
	return fmt.Sprintf("script %s exited with code %d", e.Script, e.ExitCode)
}

func (e *ScriptExecutionError) Unwrap() error { return e.Err }

// CommitPushError reports that changed artifacts could not be recorded on the
// remote. Rejected is set when the remote branch advanced since checkout.
type CommitPushError struct {
	Op       string // "status", "leak-check", "commit", "push"
	Rejected bool
	Err      error
}

func (e *CommitPushError) Error() string {
	if e.Rejected {
		return fmt.Sprintf("push rejected, remote branch diverged: %v", e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *CommitPushError) Unwrap() error { return e.Err }
