/*
Package changelog writes the release changelog for Publisher.
*/
package changelog

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// PreviewLines is the number of lines shown in dry-run mode.
const PreviewLines = 20

// Writer overwrites a changelog document.
type Writer struct {
	path        string
	defaultText string
	out         io.Writer
}

// NewWriter creates a changelog writer. defaultText replaces empty notes,
// and dry-run previews go to out.
func NewWriter(path, defaultText string, out io.Writer) *Writer {
	if out == nil {
		out = os.Stdout
	}
	return &Writer{
		path:        path,
		defaultText: defaultText,
		out:         out,
	}
}

// Write replaces the changelog with text.
func (w *Writer) Write(text string, dry bool) error {
	if text == "" {
		text = w.defaultText
	}

	if dry {
		log.Info("[dry-run] would write changelog (preview)", "file", w.path)
		fmt.Fprintln(w.out, Preview(text, PreviewLines))
		return nil
	}

	if err := os.WriteFile(w.path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write changelog: %w", err)
	}

	log.Info("Changelog updated", "file", w.path)
	return nil
}

// Preview returns at most n lines of text.
func Preview(text string, n int) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}
