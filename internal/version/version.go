/*
Package version decides which version a release is published under.

Three sources are tried in order: an explicit version given by the caller,
the latest release published on the registry, and an automatic date based
version of the form YYYY.MM.DD.N.
*/
package version

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/oarkflow/publisher/internal/release"
	"github.com/oarkflow/publisher/internal/tmpl"
)

// Auto is the explicit version token that requests an automatic version.
const Auto = "auto"

// DateLayout is the date part of an automatic version.
const DateLayout = "2006.01.02"

// Source identifies where a version came from.
type Source string

const (
	SourceExplicit Source = "explicit"
	SourceRemote   Source = "remote"
	SourceAuto     Source = "auto"
)

// Resolution is the outcome of version resolution.
type Resolution struct {
	Version string
	Tag     string
	Notes   string
	Source  Source
}

// Request carries the caller supplied inputs. Empty fields are unset.
type Request struct {
	Version string
	Notes   string
}

// LatestFetcher finds the latest published release.
type LatestFetcher interface {
	FetchLatest(ctx context.Context, owner, repo string) (release.Release, bool)
}

// StoredVersion reads the version currently stored in the config document.
type StoredVersion interface {
	Read() (string, error)
}

// NotesTemplates are used when the caller gives no notes.
type NotesTemplates struct {
	Manual string
	Remote string
	Auto   string
}

// Resolver resolves the version of a release.
type Resolver struct {
	Owner     string
	Repo      string
	TagPrefix string
	Notes     NotesTemplates

	Latest LatestFetcher
	Stored StoredVersion
	Tmpl   *tmpl.Context
	Clock  func() time.Time
}

// Resolve picks the version from the first source that applies.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Resolution, error) {
	if req.Version != "" {
		v := req.Version
		if v == Auto {
			var err error
			if v, err = r.AutoVersion(); err != nil {
				return Resolution{}, err
			}
		}
		return r.resolution(SourceExplicit, v, r.TagPrefix+v, req.Notes, r.Notes.Manual)
	}

	if rel, ok := r.Latest.FetchLatest(ctx, r.Owner, r.Repo); ok {
		notes := req.Notes
		if notes == "" {
			notes = rel.Notes
		}
		// the registry tag is kept verbatim once it carries the prefix
		return r.resolution(SourceRemote, r.StripPrefix(rel.Tag), rel.Tag, notes, r.Notes.Remote)
	}

	log.Warn("No published release found, falling back to automatic version")
	v, err := r.AutoVersion()
	if err != nil {
		return Resolution{}, err
	}
	return r.resolution(SourceAuto, v, r.TagPrefix+v, req.Notes, r.Notes.Auto)
}

// AutoVersion returns today's date followed by the next sequence number.
func (r *Resolver) AutoVersion() (string, error) {
	current, err := r.Stored.Read()
	if err != nil {
		return "", fmt.Errorf("failed to read current version: %w", err)
	}
	return Next(r.now(), current), nil
}

// Next computes the automatic version for day given the stored version.
func Next(day time.Time, current string) string {
	today := day.Format(DateLayout)
	n := 1
	if strings.HasPrefix(current, today) {
		parts := strings.Split(current, ".")
		if last, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
			n = last + 1
		} else {
			n = 2
		}
	}
	return fmt.Sprintf("%s.%d", today, n)
}

// StripPrefix removes every leading tag prefix and surrounding whitespace.
func (r *Resolver) StripPrefix(tag string) string {
	if r.TagPrefix != "" {
		for strings.HasPrefix(tag, r.TagPrefix) {
			tag = strings.TrimPrefix(tag, r.TagPrefix)
		}
	}
	return strings.TrimSpace(tag)
}

func (r *Resolver) resolution(src Source, v, tag, notes, fallback string) (Resolution, error) {
	res := Resolution{
		Version: v,
		Tag:     tag,
		Notes:   notes,
		Source:  src,
	}
	if res.Notes == "" {
		rendered, err := r.Tmpl.WithRelease(res.Version, res.Tag, "").Apply(fallback)
		if err != nil {
			return Resolution{}, fmt.Errorf("failed to render %s notes: %w", src, err)
		}
		res.Notes = rendered
	}
	return res, nil
}

func (r *Resolver) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now()
}
