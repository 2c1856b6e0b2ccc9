/*
Package pipeline provides the release run orchestration for Publisher.

A run resolves the version, writes the config document and the changelog,
commits them and then, depending on the mode, stops, pushes the branch, or
replaces the release tag and pushes both.
*/
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/oarkflow/publisher/internal/changelog"
	"github.com/oarkflow/publisher/internal/config"
	"github.com/oarkflow/publisher/internal/git"
	"github.com/oarkflow/publisher/internal/hook"
	"github.com/oarkflow/publisher/internal/release"
	"github.com/oarkflow/publisher/internal/tmpl"
	"github.com/oarkflow/publisher/internal/version"
	"github.com/oarkflow/publisher/internal/versionfile"
)

// Options contains options for a release run
type Options struct {
	Version    string
	Notes      string
	LatestOnly bool
	NoPush     bool
	DryRun     bool

	// WorkDir is the repository root; relative paths are resolved against it.
	WorkDir string

	// Out receives the plan, previews and the completion marker.
	Out io.Writer

	// Clock overrides the current time.
	Clock func() time.Time

	// Runner overrides the git runner.
	Runner git.Runner

	// Latest overrides the release registry client.
	Latest version.LatestFetcher
}

// Pipeline orchestrates a release run
type Pipeline struct {
	config    *config.Config
	options   Options
	out       io.Writer
	tmplCtx   *tmpl.Context
	store     *versionfile.Store
	changelog *changelog.Writer
	resolver  *version.Resolver
	driver    *git.Driver
}

// New creates a new release pipeline
func New(cfg *config.Config, opts Options) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	latest := opts.Latest
	if latest == nil {
		timeout, err := cfg.RequestTimeout()
		if err != nil {
			return nil, err
		}
		latest = release.NewClient(cfg.APIURL, cfg.UserAgent, cfg.Prefix(), timeout)
	}

	runner := opts.Runner
	if runner == nil {
		runner = &git.ExecRunner{Dir: opts.WorkDir, Stdout: out}
	}

	tmplCtx := tmpl.New(cfg, clock())
	store := versionfile.NewStore(resolve(opts.WorkDir, cfg.ConfigFile))

	return &Pipeline{
		config:    cfg,
		options:   opts,
		out:       out,
		tmplCtx:   tmplCtx,
		store:     store,
		changelog: changelog.NewWriter(resolve(opts.WorkDir, cfg.ChangelogFile), cfg.Notes.Changelog, out),
		resolver: &version.Resolver{
			Owner:     cfg.Owner,
			Repo:      cfg.Repo,
			TagPrefix: cfg.Prefix(),
			Notes: version.NotesTemplates{
				Manual: cfg.Notes.Manual,
				Remote: cfg.Notes.Remote,
				Auto:   cfg.Notes.Auto,
			},
			Latest: latest,
			Stored: store,
			Tmpl:   tmplCtx,
			Clock:  clock,
		},
		driver: git.NewDriver(runner, cfg.Remote, opts.DryRun),
	}, nil
}

// Run executes one release run and returns the resolved version.
func (p *Pipeline) Run(ctx context.Context) (version.Resolution, error) {
	res, err := p.resolver.Resolve(ctx, version.Request{
		Version: p.options.Version,
		Notes:   p.options.Notes,
	})
	if err != nil {
		return res, fmt.Errorf("failed to resolve version: %w", err)
	}

	p.printPlan(res)

	if err := p.store.Write(res.Version, p.options.DryRun); err != nil {
		return res, err
	}
	if err := p.changelog.Write(res.Notes, p.options.DryRun); err != nil {
		return res, err
	}

	tmplCtx := p.tmplCtx.WithRelease(res.Version, res.Tag, res.Notes)
	hooks := hook.NewRunner(tmplCtx, p.options.WorkDir, p.options.DryRun, p.out)

	if err := hooks.RunHooks(ctx, p.config.Before); err != nil {
		return res, fmt.Errorf("before hooks failed: %w", err)
	}

	message, err := tmplCtx.Apply(p.config.CommitMessage)
	if err != nil {
		return res, fmt.Errorf("failed to render commit message: %w", err)
	}

	commit, err := p.driver.StageAndCommit(ctx, []string{p.config.ConfigFile, p.config.ChangelogFile}, message)
	if err != nil {
		return res, err
	}
	report(commit)

	switch {
	case p.options.NoPush:
		log.Info("--no-push set, skip pushing")
	case p.options.LatestOnly:
		if err := p.driver.Push(ctx); err != nil {
			return res, err
		}
		fmt.Fprintln(p.out, "\n✅ pushed (latest only).")
	default:
		results, err := p.driver.Retag(ctx, res.Tag, true)
		for _, r := range results {
			report(r)
		}
		if err != nil {
			return res, err
		}
		fmt.Fprintln(p.out, "\n✅ pushed with tag and latest.")
	}

	if err := hooks.RunHooks(ctx, p.config.After); err != nil {
		return res, fmt.Errorf("after hooks failed: %w", err)
	}

	fmt.Fprintln(p.out, "Done.")
	return res, nil
}

func (p *Pipeline) printPlan(res version.Resolution) {
	mode := "tag and push"
	switch {
	case p.options.NoPush:
		mode = "no push"
	case p.options.LatestOnly:
		mode = "latest only"
	}

	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.SetTitle("PLAN")
	t.AppendRows([]table.Row{
		{"config.version", res.Version},
		{"tag", res.Tag},
		{"source", res.Source},
		{"mode", mode},
		{"dry run", p.options.DryRun},
	})
	t.Render()
}

func report(r git.Result) {
	if r.OK() {
		return
	}
	log.Warn("Step failed, continuing", "step", r.Step, "error", r.Err)
}

func resolve(dir, path string) string {
	if dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
