package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oarkflow/publisher"
	"github.com/oarkflow/publisher/internal/config"
)

func newCheckCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check settings file",
		Long: `Check if the settings file is valid.

This validates:
  - YAML syntax
  - Include statements
  - Timeout format
  - Template syntax`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, optional := opts.configPath()

			cfg, err := config.Load(path, optional)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config validation failed: %w", err)
			}

			if _, err := os.Stat(path); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "✓ No %s found, defaults are valid\n", path)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Settings file %s is valid\n", path)
			return nil
		},
	}
}

func newInitCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize a new settings file",
		Long: `Initialize a new .publish.yaml settings file.

This creates a settings file with the default values that you can
customize for your project.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := opts.configPath()

			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("config file already exists: %s", path)
			}

			if err := os.WriteFile(path, []byte(config.DefaultTemplate()), 0644); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Created %s\n", path)
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, commit, and build date of Publisher.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Publisher %s\n", publisher.Version)
			if publisher.GitCommit != "" {
				fmt.Fprintf(out, "  Commit: %s\n", publisher.GitCommit)
			}
			if publisher.BuildDate != "" {
				fmt.Fprintf(out, "  Built:  %s\n", publisher.BuildDate)
			}
		},
	}
}
