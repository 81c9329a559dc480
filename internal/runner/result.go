package runner

import "time"

// Source identifies what started a run.
type Source string

const (
	SourceTimer  Source = "timer"
	SourceManual Source = "manual"
)

// State is a step of the run lifecycle:
//
//	idle → preparing → executing → reconciling → (committed | noop_clean) → idle
//
// Any stage may end in failed instead.
type State string

const (
	StateIdle        State = "idle"
	StatePreparing   State = "preparing"
	StateExecuting   State = "executing"
	StateReconciling State = "reconciling"
	StateCommitted   State = "committed"
	StateNoOpClean   State = "noop_clean"
	StateDryRun      State = "dry_run"
	StateFailed      State = "failed"
)

// Result captures the outcome of one run. Errors are stored in Err/ErrStage
// rather than returned, so the caller always has something to display.
type Result struct {
	RunID       string
	Trigger     Source
	State       State   // final state before returning to idle
	Transitions []State // full path, starting and ending with idle
	ScriptPath  string
	ExitCode    int
	Stdout      string // redacted
	Stderr      string // redacted
	Changed     []string
	Commit      string
	Pushed      bool
	DryRun      bool
	Duration    time.Duration
	Err         error
	ErrStage    State // stage that failed
}
