/*
Package cmd provides the CLI commands for Publisher.
*/
package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/oarkflow/publisher/internal/config"
	"github.com/oarkflow/publisher/internal/pipeline"
)

type rootOptions struct {
	cfgFile    string
	workDir    string
	debug      bool
	version    string
	notes      string
	latestOnly bool
	noPush     bool
	dryRun     bool
}

// NewRootCommand builds the publisher command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "publisher",
		Short: "Publish a release of the project",
		Long: `Publisher writes the release version into the project config,
replaces the changelog, commits both files and pushes a release tag.

The version is taken from --version when given ("auto" generates one),
otherwise from the latest published release, otherwise it is generated
from today's date as YYYY.MM.DD.N.

An existing tag with the same name is deleted locally and on the remote
before it is created again, so a release can be re-published.

Example:
  publisher                       # publish the latest release version
  publisher --version auto        # publish today's next version
  publisher --version 1.2.0 --notes "# v1.2.0"
  publisher --latest-only         # push the branch, leave tags alone
  publisher --dry-run             # show what would happen`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cmd.OutOrStdout(), opts.debug)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelease(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "settings file (default is "+config.DefaultFile+")")
	cmd.PersistentFlags().StringVarP(&opts.workDir, "dir", "C", "", "run as if started in this directory")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug output")

	cmd.Flags().StringVar(&opts.version, "version", "", `version to publish, without the tag prefix, or "auto"`)
	cmd.Flags().StringVar(&opts.notes, "notes", "", "release notes written to the changelog")
	cmd.Flags().BoolVar(&opts.latestOnly, "latest-only", false, "push the branch only, do not replace the tag")
	cmd.Flags().BoolVar(&opts.noPush, "no-push", false, "write and commit locally without pushing")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print intended actions without changing anything")

	cmd.AddCommand(newCheckCommand(opts))
	cmd.AddCommand(newInitCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return NewRootCommand().Execute()
}

func runRelease(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	p, err := pipeline.New(cfg, pipeline.Options{
		Version:    opts.version,
		Notes:      opts.notes,
		LatestOnly: opts.latestOnly,
		NoPush:     opts.noPush,
		DryRun:     opts.dryRun,
		WorkDir:    opts.workDir,
		Out:        cmd.OutOrStdout(),
	})
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}

	if _, err := p.Run(cmd.Context()); err != nil {
		return fmt.Errorf("release failed: %w", err)
	}

	return nil
}

// loadConfig loads the settings file. Only an explicitly named file must exist.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	path, optional := opts.configPath()
	cfg, err := config.Load(path, optional)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func (o *rootOptions) configPath() (string, bool) {
	if o.cfgFile != "" {
		return o.cfgFile, false
	}
	if o.workDir != "" {
		return filepath.Join(o.workDir, config.DefaultFile), true
	}
	return config.DefaultFile, true
}

func setupLogging(out io.Writer, debug bool) {
	log.SetOutput(out)
	if debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}
