/*
Package publisher automates the release of a single project.

A release run:
  - Resolves the version (explicit, latest published release, or an
    automatic YYYY.MM.DD.N version)
  - Writes it into the project config document
  - Replaces the changelog with the release notes
  - Commits both files
  - Replaces the release tag locally and on the remote and pushes

# Configuration

Publisher reads an optional YAML settings file (.publish.yaml) naming the
repository, the files to edit, the tag prefix, the release registry and
templates for commit messages, notes and hooks.

# Usage

	publisher                     # publish the latest release version
	publisher --version auto      # publish today's next version
	publisher --latest-only       # push the branch without tagging
	publisher --no-push           # commit locally only
	publisher --dry-run           # print intended actions
	publisher check               # validate the settings file
	publisher init                # write a default settings file
*/
package publisher

// Version is the current version of Publisher
const Version = "1.0.0"

// BuildDate is set at build time
var BuildDate string

// GitCommit is set at build time
var GitCommit string
