// Package repo drives the git working copy the runner operates on: clean
// checkout, change detection by pathspec, commit under a fixed identity and
// push back to the checked-out branch.
package repo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// ErrRejected is wrapped by Push when the remote refused the update, typically
// because the branch advanced since checkout.
var ErrRejected = errors.New("push rejected by remote")

// Identity is the author and committer of generated commits.
type Identity struct {
	Name  string
	Email string
}

// Options configures a Repo.
type Options struct {
	Dir    string
	URL    string
	Remote string
	Branch string
	Git    string
}

// Repo is a git working copy.
type Repo struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Repo. Empty Remote, Branch and Git fall back to "origin",
// "main" and "git".
func New(opts Options, logger *slog.Logger) *Repo {
	if opts.Remote == "" {
		opts.Remote = "origin"
	}
	if opts.Branch == "" {
		opts.Branch = "main"
	}
	if opts.Git == "" {
		opts.Git = "git"
	}
	return &Repo{opts: opts, logger: logger}
}

// Dir returns the working copy path.
func (r *Repo) Dir() string { return r.opts.Dir }

// Prepare leaves a clean working copy of the remote branch tip in Dir. It
// clones when Dir holds no repository yet; otherwise it fetches the branch
// and discards every local change, commit and untracked file.
func (r *Repo) Prepare(ctx context.Context) error {
	if _, err := os.Stat(filepath.Join(r.opts.Dir, ".git")); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("inspecting working copy: %w", err)
		}
		return r.clone(ctx)
	}

	if r.opts.URL != "" {
		if _, err := r.run(ctx, "remote", "set-url", r.opts.Remote, r.opts.URL); err != nil {
			return err
		}
	}

	tracking := r.trackingRef()
	steps := [][]string{
		{"fetch", "--prune", r.opts.Remote, "+refs/heads/" + r.opts.Branch + ":" + tracking},
		{"checkout", "--force", "-B", r.opts.Branch, tracking},
		{"reset", "--hard", tracking},
		{"clean", "-ffdx"},
	}
	for _, args := range steps {
		if _, err := r.run(ctx, args...); err != nil {
			return err
		}
	}
	r.logger.Debug("working copy reset", "dir", r.opts.Dir, "ref", tracking)
	return nil
}

func (r *Repo) clone(ctx context.Context) error {
	if r.opts.URL == "" {
		return fmt.Errorf("no working copy at %s and no remote url configured", r.opts.Dir)
	}
	if err := os.MkdirAll(filepath.Dir(r.opts.Dir), 0o755); err != nil {
		return fmt.Errorf("creating parent of %s: %w", r.opts.Dir, err)
	}
	r.logger.Info("cloning", "url", sanitizeURL(r.opts.URL), "branch", r.opts.Branch, "dir", r.opts.Dir)
	_, err := r.runIn(ctx, "", "clone", "--origin", r.opts.Remote, "--branch", r.opts.Branch, "--", r.opts.URL, r.opts.Dir)
	return err
}

// Changed returns the working copy paths matching the pathspecs that differ
// from HEAD: modified, added, deleted or untracked. Paths are sorted.
func (r *Repo) Changed(ctx context.Context, pathspecs []string) ([]string, error) {
	args := []string{"status", "--porcelain=v1", "-z", "--untracked-files=all", "--no-renames", "--"}
	args = append(args, pathspecs...)
	out, err := r.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	return parsePorcelain(out), nil
}

// parsePorcelain extracts paths from `git status --porcelain=v1 -z --no-renames`.
func parsePorcelain(out string) []string {
	seen := make(map[string]bool)
	var paths []string
	for _, entry := range strings.Split(out, "\x00") {
		if len(entry) < 4 {
			continue
		}
		path := entry[3:]
		if !seen[path] {
			seen[path] = true
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths
}

// Commit stages exactly files (including deletions) and records one commit
// with message under id. It returns the new commit hash.
func (r *Repo) Commit(ctx context.Context, files []string, message string, id Identity) (string, error) {
	if len(files) == 0 {
		return "", fmt.Errorf("nothing to commit")
	}

	add := append([]string{"add", "--all", "--"}, files...)
	if _, err := r.run(ctx, add...); err != nil {
		return "", err
	}

	// Pathspecs limit the commit to files even if the script staged others.
	commit := []string{
		"-c", "user.name=" + id.Name,
		"-c", "user.email=" + id.Email,
		"commit", "--no-verify", "--no-gpg-sign", "--quiet", "-m", message, "--",
	}
	_, err := r.run(ctx, append(commit, files...)...)
	if err != nil {
		return "", err
	}
	return r.Head(ctx)
}

// Push pushes HEAD to the checked-out branch. A non-fast-forward refusal is
// reported as ErrRejected; it is never retried or merged.
func (r *Repo) Push(ctx context.Context) error {
	out, err := r.run(ctx, "push", "--porcelain", r.opts.Remote, "HEAD:refs/heads/"+r.opts.Branch)
	if err != nil {
		if isRejection(out) || isRejection(err.Error()) {
			return fmt.Errorf("%w: %v", ErrRejected, err)
		}
		return err
	}
	return nil
}

func isRejection(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "[rejected]") ||
		strings.Contains(s, "non-fast-forward") ||
		strings.Contains(s, "fetch first")
}

// Head returns the hash of HEAD.
func (r *Repo) Head(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (r *Repo) trackingRef() string {
	return "refs/remotes/" + r.opts.Remote + "/" + r.opts.Branch
}

func (r *Repo) run(ctx context.Context, args ...string) (string, error) {
	return r.runIn(ctx, r.opts.Dir, args...)
}

// runIn executes git and returns stdout. On failure the error carries the
// subcommand and stderr, with credentials in the remote url masked.
func (r *Repo) runIn(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.opts.Git, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "LC_ALL=C")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		msg := r.mask(strings.TrimSpace(stderr.String()))
		if msg == "" {
			msg = r.mask(strings.TrimSpace(stdout.String()))
		}
		return stdout.String(), fmt.Errorf("git %s: %w: %s", subcommand(args), err, msg)
	}
	return stdout.String(), nil
}

func (r *Repo) mask(s string) string {
	if r.opts.URL == "" {
		return s
	}
	return strings.ReplaceAll(s, r.opts.URL, sanitizeURL(r.opts.URL))
}

func subcommand(args []string) string {
	for i := 0; i < len(args); i++ {
		if args[i] == "-c" {
			i++
			continue
		}
		return args[i]
	}
	return ""
}

// sanitizeURL drops userinfo from a remote url so tokens never reach logs.
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.User("***")
	return u.String()
}
