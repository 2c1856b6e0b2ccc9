/*
Package versionfile reads and rewrites the "version:" line of a project
configuration document without touching any other line.
*/
package versionfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
)

var (
	// keyRe matches any version key line, with or without a value.
	keyRe = regexp.MustCompile(`^(\s*)version:\s*`)

	// valueRe matches a version key line carrying a value.
	valueRe = regexp.MustCompile(`^\s*version:\s*(.+?)\s*$`)
)

// Line is a single line of a document together with its terminator.
type Line struct {
	Text string
	EOL  string
}

func (l Line) String() string {
	return l.Text + l.EOL
}

// Document is a config document split around its first version key line.
type Document struct {
	Lines []Line

	// Index of the first version key line, -1 when there is none.
	Index int
}

// Parse splits data into lines and locates the first version key line.
func Parse(data string) Document {
	doc := Document{Index: -1}
	for len(data) > 0 {
		var line Line
		i := strings.IndexByte(data, '\n')
		if i < 0 {
			line.Text, data = data, ""
		} else {
			line.Text, line.EOL, data = data[:i], "\n", data[i+1:]
			if strings.HasSuffix(line.Text, "\r") {
				line.Text = strings.TrimSuffix(line.Text, "\r")
				line.EOL = "\r\n"
			}
		}
		if doc.Index < 0 && keyRe.MatchString(line.Text) {
			doc.Index = len(doc.Lines)
		}
		doc.Lines = append(doc.Lines, line)
	}
	return doc
}

// Prefix returns the lines before the version line, or every line when
// there is no version line.
func (d Document) Prefix() []Line {
	if d.Index < 0 {
		return d.Lines
	}
	return d.Lines[:d.Index]
}

// Suffix returns the lines after the version line.
func (d Document) Suffix() []Line {
	if d.Index < 0 {
		return nil
	}
	return d.Lines[d.Index+1:]
}

// Value returns the first non-empty version value, unquoted.
func (d Document) Value() string {
	for _, l := range d.Lines {
		m := valueRe.FindStringSubmatch(l.Text)
		if m == nil {
			continue
		}
		v := strings.TrimSpace(m[1])
		v = strings.Trim(v, `"`)
		return strings.Trim(v, `'`)
	}
	return ""
}

// SetVersion returns a copy of the document with the version line replaced,
// or a new trailing version line when none exists.
func (d Document) SetVersion(version string) Document {
	out := Document{Index: d.Index}
	out.Lines = append(out.Lines, d.Prefix()...)

	if d.Index >= 0 {
		old := d.Lines[d.Index]
		indent := keyRe.FindStringSubmatch(old.Text)[1]
		out.Lines = append(out.Lines, Line{Text: indent + "version: " + version, EOL: old.EOL})
		out.Lines = append(out.Lines, d.Suffix()...)
		return out
	}

	if n := len(out.Lines); n > 0 && out.Lines[n-1].EOL == "" {
		out.Lines[n-1].EOL = "\n"
	}
	out.Index = len(out.Lines)
	out.Lines = append(out.Lines, Line{Text: "version: " + version, EOL: "\n"})
	return out
}

func (d Document) String() string {
	var b strings.Builder
	for _, l := range d.Lines {
		b.WriteString(l.String())
	}
	return b.String()
}

// Store reads and writes the version of a single config document.
type Store struct {
	path string
}

// NewStore creates a store for the document at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Read returns the stored version, or "" when the file or the line is missing.
func (s *Store) Read() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	return Parse(string(data)).Value(), nil
}

// Write stores version in the document. Unlike Read, a missing file is an error.
// The existence check runs in dry mode too.
func (s *Store) Write(version string, dry bool) error {
	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("%s not found: %w", s.path, err)
	}

	if dry {
		log.Info("[dry-run] would write version", "version", version, "file", s.path)
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	doc := Parse(string(data)).SetVersion(version)
	if err := os.WriteFile(s.path, []byte(doc.String()), info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}

	log.Info("Config updated", "file", s.path, "version", version)
	return nil
}
