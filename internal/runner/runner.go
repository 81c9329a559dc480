package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sznuper/cronpush/internal/config"
	"github.com/sznuper/cronpush/internal/notify"
	"github.com/sznuper/cronpush/internal/repo"
	"github.com/sznuper/cronpush/internal/script"
	"github.com/sznuper/cronpush/internal/secret"
)

// Workspace is the working copy a run operates on. *repo.Repo implements it.
type Workspace interface {
	Dir() string
	Prepare(ctx context.Context) error
	Changed(ctx context.Context, pathspecs []string) ([]string, error)
	Commit(ctx context.Context, files []string, message string, id repo.Identity) (string, error)
	Push(ctx context.Context) error
}

// Runner drives one run end to end: prepare → execute → reconcile.
type Runner struct {
	cfg    *config.Config
	ws     Workspace
	logger *slog.Logger
}

// New creates a Runner over the given workspace.
func New(cfg *config.Config, ws Workspace, logger *slog.Logger) *Runner {
	return &Runner{cfg: cfg, ws: ws, logger: logger}
}

// NewFromConfig creates a Runner backed by a git working copy described by cfg.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Runner {
	ws := repo.New(repo.Options{
		Dir:    cfg.Options.WorkDir,
		URL:    cfg.Options.RemoteURL,
		Remote: cfg.Repo.Remote,
		Branch: cfg.Options.Branch,
		Git:    cfg.Repo.Git,
	}, logger)
	return New(cfg, ws, logger)
}

// run is the per-invocation state threaded through the stages.
type run struct {
	res     *Result
	log     *slog.Logger
	secrets secret.Set
	start   time.Time
}

func (rn *run) enter(s State) {
	rn.res.Transitions = append(rn.res.Transitions, s)
	rn.log.Debug("state", "state", s)
}

// fail records err against the stage that produced it and ends the run.
func (rn *run) fail(stage State, err error) {
	rn.res.Err = err
	rn.res.ErrStage = stage
	rn.res.State = StateFailed
	rn.enter(StateFailed)
	rn.log.Error("run failed", "stage", stage, "error", rn.secrets.Redact(err.Error()))
}

// Run executes one run for the given trigger. With dryRun the script still
// runs but nothing is committed, pushed or notified.
func (r *Runner) Run(ctx context.Context, src Source, dryRun bool) Result {
	res := Result{
		RunID:       uuid.NewString(),
		Trigger:     src,
		DryRun:      dryRun,
		Transitions: []State{StateIdle},
	}
	rn := &run{
		res:     &res,
		log:     r.logger.With("run_id", res.RunID, "trigger", src),
		secrets: secret.Set(r.cfg.Secrets),
		start:   time.Now(),
	}
	rn.log.Info("run started", "dry_run", dryRun)

	r.execute(ctx, rn)

	res.Duration = time.Since(rn.start)
	res.Transitions = append(res.Transitions, StateIdle)
	if res.Err != nil {
		r.notifyFailure(ctx, rn)
		return res
	}
	rn.log.Info("run completed", "state", res.State, "changed", len(res.Changed), "commit", res.Commit, "duration", res.Duration)
	return res
}

func (r *Runner) execute(ctx context.Context, rn *run) {
	rn.enter(StatePreparing)
	resolved, err := r.prepare(ctx, rn)
	if err != nil {
		rn.fail(StatePreparing, err)
		return
	}
	rn.res.ScriptPath = resolved.Path

	rn.enter(StateExecuting)
	if err := r.invoke(ctx, rn, resolved); err != nil {
		rn.fail(StateExecuting, err)
		return
	}

	rn.enter(StateReconciling)
	final, err := r.reconcile(ctx, rn)
	if err != nil {
		rn.fail(StateReconciling, err)
		return
	}
	rn.res.State = final
	rn.enter(final)
}

// prepare leaves a clean working copy with dependencies installed and
// returns the resolved script.
func (r *Runner) prepare(ctx context.Context, rn *run) (*script.Resolved, error) {
	if missing := rn.secrets.Missing(); len(missing) > 0 {
		rn.log.Warn("secrets are empty, forwarding anyway", "names", missing)
	}

	if err := script.RequireBinaries(r.cfg.Prepare.Require); err != nil {
		return nil, &EnvironmentSetupError{Step: "require", Err: err}
	}

	rn.log.Info("preparing working copy", "dir", r.ws.Dir())
	if err := r.ws.Prepare(ctx); err != nil {
		return nil, &EnvironmentSetupError{Step: "checkout", Err: err}
	}

	timeout := parseDuration(r.cfg.Prepare.Timeout)
	env := secret.Passthrough(r.cfg.Script.Passthrough)
	for _, argv := range r.cfg.Prepare.Commands {
		rn.log.Info("installing dependencies", "command", strings.Join(argv, " "))
		out, err := script.Exec(ctx, script.ExecOpts{
			Path:    argv[0],
			Args:    argv[1:],
			Dir:     r.ws.Dir(),
			Timeout: timeout,
			Env:     env,
		})
		if err == nil && out.ExitCode != 0 {
			err = fmt.Errorf("%s exited with code %d: %s", argv[0], out.ExitCode, rn.secrets.Redact(strings.TrimSpace(out.Stderr)))
		}
		if err != nil {
			return nil, &EnvironmentSetupError{Step: "install", Err: err}
		}
	}

	resolved, err := script.Resolve(r.cfg.Script.Path, r.ws.Dir())
	if err != nil {
		return nil, &EnvironmentSetupError{Step: "resolve", Err: err}
	}
	if !r.cfg.Script.SHA256.Disabled {
		if err := script.Verify(resolved.Path, r.cfg.Script.SHA256.Hash); err != nil {
			return nil, &EnvironmentSetupError{Step: "verify", Err: err}
		}
	}
	rn.log.Debug("script resolved", "path", resolved.Path, "source", resolved.Source)
	return resolved, nil
}

// invoke runs the script with the secrets in its environment.
func (r *Runner) invoke(ctx context.Context, rn *run, resolved *script.Resolved) error {
	env := secret.Passthrough(r.cfg.Script.Passthrough)
	env = append(env,
		"CRONPUSH_TRIGGER="+string(rn.res.Trigger),
		"CRONPUSH_RUN_ID="+rn.res.RunID,
	)
	// Secrets go last so they win over a passthrough of the same name.
	env = append(env, rn.secrets.Env()...)

	timeout := parseDuration(r.cfg.Script.Timeout)
	rn.log.Info("executing script", "path", resolved.Path, "timeout", timeout, "secrets", rn.secrets.Names())

	out, err := script.Exec(ctx, script.ExecOpts{
		Path:    resolved.Path,
		Args:    r.cfg.Script.Args,
		Dir:     r.ws.Dir(),
		Timeout: timeout,
		Env:     env,
	})
	if out != nil {
		rn.res.Stdout = rn.secrets.Redact(out.Stdout)
		rn.res.Stderr = rn.secrets.Redact(out.Stderr)
		rn.res.ExitCode = out.ExitCode
	}
	if err != nil {
		rn.res.ExitCode = -1
		return &ScriptExecutionError{Script: resolved.Name, ExitCode: -1, Stderr: rn.res.Stderr, Err: err}
	}
	rn.log.Debug("script finished", "exit_code", out.ExitCode, "duration", out.Duration, "stderr", rn.res.Stderr)
	if out.ExitCode != 0 {
		return &ScriptExecutionError{Script: resolved.Name, ExitCode: out.ExitCode, Stderr: rn.res.Stderr}
	}
	return nil
}

// reconcile commits and pushes changed artifacts, if any.
func (r *Runner) reconcile(ctx context.Context, rn *run) (State, error) {
	changed, err := r.ws.Changed(ctx, r.cfg.Artifacts)
	if err != nil {
		return "", &CommitPushError{Op: "status", Err: err}
	}
	rn.res.Changed = changed
	if len(changed) == 0 {
		rn.log.Info("no artifact changes")
		return StateNoOpClean, nil
	}
	rn.log.Info("artifacts changed", "files", changed)

	if err := r.checkLeaks(changed, rn.secrets); err != nil {
		return "", &CommitPushError{Op: "leak-check", Err: err}
	}

	if rn.res.DryRun {
		rn.log.Info("dry run, skipping commit and push")
		return StateDryRun, nil
	}

	sha, err := r.ws.Commit(ctx, changed, r.cfg.Commit.Message, repo.Identity{
		Name:  r.cfg.Commit.AuthorName,
		Email: r.cfg.Commit.AuthorEmail,
	})
	if err != nil {
		return "", &CommitPushError{Op: "commit", Err: err}
	}
	rn.res.Commit = sha
	rn.log.Info("committed", "commit", sha)

	if err := r.ws.Push(ctx); err != nil {
		return "", &CommitPushError{Op: "push", Rejected: errors.Is(err, repo.ErrRejected), Err: err}
	}
	rn.res.Pushed = true
	rn.log.Info("pushed", "commit", sha)
	return StateCommitted, nil
}

// checkLeaks refuses to record a secret value in the commit message or in
// any changed artifact that still exists.
func (r *Runner) checkLeaks(changed []string, secrets secret.Set) error {
	if names := secrets.Leaks([]byte(r.cfg.Commit.Message)); len(names) > 0 {
		return fmt.Errorf("commit message contains secret %s", strings.Join(names, ", "))
	}
	for _, f := range changed {
		data, err := os.ReadFile(filepath.Join(r.ws.Dir(), f))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", f, err)
		}
		if names := secrets.Leaks(data); len(names) > 0 {
			return fmt.Errorf("%s contains secret %s", f, strings.Join(names, ", "))
		}
	}
	return nil
}

// notifyFailure sends the configured failure notifications. Problems are
// logged and never change the run outcome.
func (r *Runner) notifyFailure(ctx context.Context, rn *run) {
	if len(r.cfg.Notify.Targets) == 0 {
		return
	}
	res := rn.res
	data := notify.BuildTemplateData(r.cfg.Globals, map[string]string{
		"id":        res.RunID,
		"trigger":   string(res.Trigger),
		"state":     string(res.State),
		"stage":     string(res.ErrStage),
		"error":     rn.secrets.Redact(res.Err.Error()),
		"exit_code": strconv.Itoa(res.ExitCode),
		"changed":   strings.Join(res.Changed, ", "),
		"commit":    res.Commit,
		"duration":  res.Duration.Round(time.Millisecond).String(),
	}, nil)

	targets, err := notify.ResolveTargets(mapNotifyRefs(r.cfg.Notify.Targets), mapServiceDefs(r.cfg.Services), r.cfg.Notify.Template, data)
	if err != nil {
		rn.log.Error("failure notification template failed", "error", err)
		return
	}
	for _, t := range targets {
		if ctx.Err() != nil {
			return
		}
		if res.DryRun {
			if err := notify.Validate(t); err != nil {
				rn.log.Error("notify validation failed (dry-run)", "service", t.ServiceName, "error", err)
			}
			continue
		}
		t.Message = rn.secrets.Redact(t.Message)
		if err := notify.Send(t); err != nil {
			rn.log.Error("failure notification not sent", "service", t.ServiceName, "error", rn.secrets.Redact(err.Error()))
			continue
		}
		rn.log.Info("failure notification sent", "service", t.ServiceName)
	}
}

func parseDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

func mapNotifyRefs(targets []config.NotifyTarget) []notify.NotifyRef {
	refs := make([]notify.NotifyRef, len(targets))
	for i, t := range targets {
		refs[i] = notify.NotifyRef{
			ServiceName: t.Service,
			Template:    t.Template,
			Params:      t.Params,
		}
	}
	return refs
}

func mapServiceDefs(services map[string]config.Service) map[string]notify.ServiceDef {
	defs := make(map[string]notify.ServiceDef, len(services))
	for name, svc := range services {
		defs[name] = notify.ServiceDef{
			URL:    svc.URL,
			Params: svc.Params,
		}
	}
	return defs
}
