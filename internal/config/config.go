/*
Package config provides settings loading and validation for Publisher.
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"dario.cat/mergo"
	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the settings file looked up when none is given.
const DefaultFile = ".publish.yaml"

// Config represents the complete Publisher settings
type Config struct {
	// Owner of the repository on the release registry
	Owner string `yaml:"owner" default:"Nanako718"`

	// Repo is the repository name on the release registry
	Repo string `yaml:"repo" default:"ha-fusion"`

	// ConfigFile is the project document holding the version: line
	ConfigFile string `yaml:"config_file,omitempty" default:"config.yaml"`

	// ChangelogFile is overwritten on every run
	ChangelogFile string `yaml:"changelog_file,omitempty" default:"CHANGELOG.md"`

	// TagPrefix is prepended to the version to form a tag. An explicit
	// empty value disables the prefix, so it is only defaulted when unset.
	TagPrefix *string `yaml:"tag_prefix,omitempty" default:"v"`

	// Remote is the git remote tags are pushed to
	Remote string `yaml:"remote,omitempty" default:"origin"`

	// APIURL is the base URL of the release registry
	APIURL string `yaml:"api_url,omitempty" default:"https://api.github.com"`

	// UserAgent identifies the client to the release registry
	UserAgent string `yaml:"user_agent,omitempty" default:"publish-bot"`

	// Timeout bounds the release registry request
	Timeout string `yaml:"timeout,omitempty" default:"20s"`

	// CommitMessage is the release commit message template
	CommitMessage string `yaml:"commit_message,omitempty" default:"release: {{ .Version }}"`

	// Notes templates, one per version source
	Notes Notes `yaml:"notes,omitempty"`

	// Before hooks run after files are written and before the commit
	Before []Hook `yaml:"before,omitempty"`

	// After hooks run once the push step is done
	After []Hook `yaml:"after,omitempty"`

	// Include other settings files
	Includes []string `yaml:"includes,omitempty"`
}

// Notes holds the release notes templates
type Notes struct {
	Manual    string `yaml:"manual,omitempty" default:"# {{ .Tag }}\n\nManual release."`
	Remote    string `yaml:"remote,omitempty" default:"# {{ .Tag }}\n"`
	Auto      string `yaml:"auto,omitempty" default:"# {{ .Tag }}\n\nAuto fallback (no releases in repo)."`
	Changelog string `yaml:"changelog,omitempty" default:"# Changelog\n\nManual release."`
}

// Hook represents a single hook command
type Hook struct {
	// Command to run
	Cmd string `yaml:"cmd"`

	// Directory to run the command in
	Dir string `yaml:"dir,omitempty"`

	// Environment variables
	Env map[string]string `yaml:"env,omitempty"`

	// FailFast stops the run on error
	FailFast bool `yaml:"fail_fast,omitempty"`

	// Shell runs command in shell
	Shell bool `yaml:"shell,omitempty"`
}

// Default returns the settings used when no settings file exists.
func Default() *Config {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		panic(fmt.Sprintf("config: invalid default tags: %v", err))
	}
	return &cfg
}

// Load loads settings from a file. A missing file yields the defaults when
// optional is true.
func Load(path string, optional bool) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	return cfg, nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Process includes
	baseDir := filepath.Dir(path)
	for _, include := range cfg.Includes {
		includePath := include
		if !filepath.IsAbs(includePath) {
			includePath = filepath.Join(baseDir, include)
		}

		// Support glob patterns
		matches, err := filepath.Glob(includePath)
		if err != nil {
			return nil, fmt.Errorf("invalid include pattern %s: %w", include, err)
		}

		for _, match := range matches {
			includeCfg, err := load(match)
			if err != nil {
				return nil, fmt.Errorf("failed to load include %s: %w", match, err)
			}

			if err := mergo.Merge(&cfg, includeCfg, mergo.WithAppendSlice); err != nil {
				return nil, fmt.Errorf("failed to merge include %s: %w", match, err)
			}
		}
	}

	return &cfg, nil
}

// Validate validates the settings
func (c *Config) Validate() error {
	if c.Owner == "" || c.Repo == "" {
		return fmt.Errorf("owner and repo are required")
	}
	if c.ConfigFile == "" {
		return fmt.Errorf("config_file is required")
	}
	if c.ChangelogFile == "" {
		return fmt.Errorf("changelog_file is required")
	}
	if prefix := c.Prefix(); strings.TrimSpace(prefix) != prefix {
		return fmt.Errorf("tag_prefix must not contain surrounding whitespace")
	}
	if _, err := c.RequestTimeout(); err != nil {
		return err
	}

	templates := map[string]string{
		"commit_message":  c.CommitMessage,
		"notes.manual":    c.Notes.Manual,
		"notes.remote":    c.Notes.Remote,
		"notes.auto":      c.Notes.Auto,
		"notes.changelog": c.Notes.Changelog,
	}
	for i, h := range c.Before {
		templates[fmt.Sprintf("before[%d].cmd", i)] = h.Cmd
	}
	for i, h := range c.After {
		templates[fmt.Sprintf("after[%d].cmd", i)] = h.Cmd
	}
	for name, tmpl := range templates {
		if _, err := template.New(name).Parse(tmpl); err != nil {
			return fmt.Errorf("invalid template in %s: %w", name, err)
		}
	}

	return nil
}

// Prefix returns the tag prefix, "" when disabled.
func (c *Config) Prefix() string {
	if c.TagPrefix == nil {
		return ""
	}
	return *c.TagPrefix
}

// RequestTimeout parses the release registry timeout.
func (c *Config) RequestTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	return d, nil
}

// DefaultTemplate returns the default settings file
func DefaultTemplate() string {
	return `# Publisher settings file

owner: Nanako718
repo: ha-fusion

# Project document carrying the "version:" line
config_file: config.yaml
changelog_file: CHANGELOG.md

tag_prefix: v
remote: origin

# Release registry
api_url: https://api.github.com
user_agent: publish-bot
timeout: 20s

commit_message: "release: {{ .Version }}"

# Release notes used when --notes is not given
notes:
  manual: "# {{ .Tag }}\n\nManual release."
  remote: "# {{ .Tag }}\n"
  auto: "# {{ .Tag }}\n\nAuto fallback (no releases in repo)."

# Hooks
# before:
#   - cmd: go fmt ./...
# after:
#   - cmd: echo released {{ .Tag }}
#     shell: true
`
}
