/*
Package git drives the git command line for Publisher.
*/
package git

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"
)

// Runner runs a single git invocation.
type Runner interface {
	Run(ctx context.Context, args ...string) error
}

// ExecRunner runs git as a subprocess, echoing each command line and
// streaming its output.
type ExecRunner struct {
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

// Run executes git with args.
func (r *ExecRunner) Run(ctx context.Context, args ...string) error {
	stdout, stderr := r.Stdout, r.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	fmt.Fprintf(stdout, "$ git %s\n", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.Dir
	var errBuf bytes.Buffer
	cmd.Stdout = stdout
	cmd.Stderr = io.MultiWriter(stderr, &errBuf)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(errBuf.String()))
	}
	return nil
}

// Result is the outcome of a step whose failure does not abort the run.
type Result struct {
	Step string
	Args []string
	Err  error
}

// OK reports whether the step succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Driver stages, commits, tags and pushes.
type Driver struct {
	runner Runner
	remote string
	dry    bool
}

// NewDriver creates a driver pushing to remote. In dry mode nothing is run.
func NewDriver(runner Runner, remote string, dry bool) *Driver {
	return &Driver{
		runner: runner,
		remote: remote,
		dry:    dry,
	}
}

// StageAndCommit stages files and commits them. A failed commit, typically
// because nothing changed, is returned as a Result rather than an error.
func (d *Driver) StageAndCommit(ctx context.Context, files []string, message string) (Result, error) {
	if d.dry {
		log.Infof("[dry-run] git add %s && git commit -m %q", strings.Join(files, " "), message)
		return Result{Step: "commit"}, nil
	}

	if err := d.run(ctx, append([]string{"add"}, files...)...); err != nil {
		return Result{}, fmt.Errorf("failed to stage files: %w", err)
	}

	return d.tolerate(ctx, "commit", "commit", "-m", message), nil
}

// Retag replaces tag locally and on the remote, then pushes the branch and
// the tag when push is set. Deleting a tag that does not exist is tolerated,
// which makes repeated runs converge on the same tag.
func (d *Driver) Retag(ctx context.Context, tag string, push bool) ([]Result, error) {
	if d.dry {
		log.Info("[dry-run] re-tag and push", "tag", tag, "remote", d.remote, "push", push)
		return nil, nil
	}

	results := []Result{
		d.tolerate(ctx, "delete local tag", "tag", "-d", tag),
		d.tolerate(ctx, "delete remote tag", "push", d.remote, ":refs/tags/"+tag),
	}

	if err := d.run(ctx, "tag", tag); err != nil {
		return results, fmt.Errorf("failed to create tag %s: %w", tag, err)
	}

	if !push {
		return results, nil
	}

	if err := d.run(ctx, "push"); err != nil {
		return results, fmt.Errorf("failed to push branch: %w", err)
	}
	if err := d.run(ctx, "push", d.remote, tag); err != nil {
		return results, fmt.Errorf("failed to push tag %s: %w", tag, err)
	}

	return results, nil
}

// Push pushes the current branch only.
func (d *Driver) Push(ctx context.Context) error {
	if d.dry {
		log.Info("[dry-run] git push")
		return nil
	}
	if err := d.run(ctx, "push"); err != nil {
		return fmt.Errorf("failed to push branch: %w", err)
	}
	return nil
}

func (d *Driver) tolerate(ctx context.Context, step string, args ...string) Result {
	return Result{Step: step, Args: args, Err: d.run(ctx, args...)}
}

func (d *Driver) run(ctx context.Context, args ...string) error {
	log.Debug("git", "args", args)
	return d.runner.Run(ctx, args...)
}
