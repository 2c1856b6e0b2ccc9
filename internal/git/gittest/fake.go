// Package gittest provides an in-memory git runner for tests.
package gittest

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Fake simulates the subset of git used by the driver: one branch, local
// tags and remote tags. Commits record the worktree as returned by Snapshot.
type Fake struct {
	mu sync.Mutex

	// Snapshot returns the current worktree content.
	Snapshot func() string

	// Fail forces an error for any command line starting with the key.
	Fail map[string]error

	Head       string
	Commits    int
	RemoteHead string
	LocalTags  map[string]string
	RemoteTags map[string]string
	Calls      [][]string
}

// New creates an empty repository.
func New(snapshot func() string) *Fake {
	return &Fake{
		Snapshot:   snapshot,
		Fail:       map[string]error{},
		LocalTags:  map[string]string{},
		RemoteTags: map[string]string{},
	}
}

// Run implements git.Runner.
func (f *Fake) Run(ctx context.Context, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, append([]string(nil), args...))

	line := strings.Join(args, " ")
	for prefix, err := range f.Fail {
		if strings.HasPrefix(line, prefix) {
			return err
		}
	}

	switch {
	case args[0] == "add":
		return nil
	case args[0] == "commit":
		snap := ""
		if f.Snapshot != nil {
			snap = f.Snapshot()
		}
		if f.Commits > 0 && snap == f.Head {
			return fmt.Errorf("nothing to commit, working tree clean")
		}
		f.Head = snap
		f.Commits++
		return nil
	case args[0] == "tag" && len(args) == 3 && args[1] == "-d":
		if _, ok := f.LocalTags[args[2]]; !ok {
			return fmt.Errorf("error: tag '%s' not found", args[2])
		}
		delete(f.LocalTags, args[2])
		return nil
	case args[0] == "tag" && len(args) == 2:
		if _, ok := f.LocalTags[args[1]]; ok {
			return fmt.Errorf("fatal: tag '%s' already exists", args[1])
		}
		f.LocalTags[args[1]] = f.Head
		return nil
	case args[0] == "push" && len(args) == 1:
		f.RemoteHead = f.Head
		return nil
	case args[0] == "push" && len(args) == 3 && strings.HasPrefix(args[2], ":refs/tags/"):
		tag := strings.TrimPrefix(args[2], ":refs/tags/")
		if _, ok := f.RemoteTags[tag]; !ok {
			return fmt.Errorf("error: unable to delete '%s': remote ref does not exist", tag)
		}
		delete(f.RemoteTags, tag)
		return nil
	case args[0] == "push" && len(args) == 3:
		tag := args[2]
		local, ok := f.LocalTags[tag]
		if !ok {
			return fmt.Errorf("error: src refspec %s does not match any", tag)
		}
		if remote, exists := f.RemoteTags[tag]; exists && remote != local {
			return fmt.Errorf("! [rejected] %s -> %s (already exists)", tag, tag)
		}
		f.RemoteTags[tag] = local
		return nil
	}

	return fmt.Errorf("gittest: unsupported command %q", line)
}

// Lines returns every recorded command line.
func (f *Fake) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	lines := make([]string, 0, len(f.Calls))
	for _, c := range f.Calls {
		lines = append(lines, strings.Join(c, " "))
	}
	return lines
}
