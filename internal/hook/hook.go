// Package hook provides lifecycle hook execution.
package hook

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/oarkflow/publisher/internal/config"
	"github.com/oarkflow/publisher/internal/tmpl"
)

// Runner executes lifecycle hooks.
type Runner struct {
	tmplCtx *tmpl.Context
	workDir string
	dry     bool
	out     io.Writer
}

// NewRunner creates a new hook runner. Command output goes to out.
func NewRunner(tmplCtx *tmpl.Context, workDir string, dry bool, out io.Writer) *Runner {
	if out == nil {
		out = os.Stdout
	}
	return &Runner{
		tmplCtx: tmplCtx,
		workDir: workDir,
		dry:     dry,
		out:     out,
	}
}

// Run executes a hook.
func (r *Runner) Run(ctx context.Context, hook config.Hook) error {
	if strings.TrimSpace(hook.Cmd) == "" {
		return nil
	}

	cmd, err := r.tmplCtx.Apply(hook.Cmd)
	if err != nil {
		return fmt.Errorf("failed to apply template to command: %w", err)
	}

	env := make([]string, 0, len(hook.Env))
	for key, value := range hook.Env {
		expandedValue, err := r.tmplCtx.Apply(value)
		if err != nil {
			return fmt.Errorf("failed to apply template to env %s: %w", key, err)
		}
		env = append(env, fmt.Sprintf("%s=%s", key, expandedValue))
	}

	if r.dry {
		log.Info("[dry-run] would run hook", "cmd", cmd)
		return nil
	}

	log.Info("Running hook", "cmd", cmd)

	var c *exec.Cmd
	if hook.Shell {
		c = shellCommand(ctx, cmd)
	} else {
		parts := strings.Fields(cmd)
		if len(parts) == 0 {
			return nil
		}
		c = exec.CommandContext(ctx, parts[0], parts[1:]...)
	}

	c.Dir = r.workDir
	if hook.Dir != "" {
		c.Dir = hook.Dir
		if !filepath.IsAbs(hook.Dir) && r.workDir != "" {
			c.Dir = filepath.Join(r.workDir, hook.Dir)
		}
	}

	c.Env = append(os.Environ(), env...)
	c.Stdout = r.out
	c.Stderr = r.out

	if err := c.Run(); err != nil {
		if hook.FailFast {
			return fmt.Errorf("hook failed: %w", err)
		}
		log.Warn("Hook failed but continuing", "cmd", cmd, "error", err)
	}

	return nil
}

// RunHooks executes multiple hooks.
func (r *Runner) RunHooks(ctx context.Context, hooks []config.Hook) error {
	for _, hook := range hooks {
		if err := r.Run(ctx, hook); err != nil {
			return err
		}
	}
	return nil
}

func shellCommand(ctx context.Context, cmd string) *exec.Cmd {
	shell := os.Getenv("SHELL")
	if runtime.GOOS == "windows" {
		if shell == "" {
			shell = "powershell.exe"
		}
		return exec.CommandContext(ctx, shell, "-Command", cmd)
	}
	if shell == "" {
		shell = "/bin/sh"
	}
	return exec.CommandContext(ctx, shell, "-c", cmd)
}
