package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oarkflow/publisher/internal/config"
	"github.com/oarkflow/publisher/internal/git/gittest"
	"github.com/oarkflow/publisher/internal/version"
)

const configYAML = "name: Fusion\nslug: fusion\n  version: 2023.12.31.5\nports:\n  - 5050/tcp\n"

type env struct {
	dir  string
	cfg  *config.Config
	repo *gittest.Fake
	out  *bytes.Buffer
	hits *int32
}

func newEnv(t *testing.T, status int, body string) *env {
	t.Helper()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(configYAML), 0o644))

	cfg := config.Default()
	cfg.APIURL = srv.URL
	cfg.Timeout = "2s"

	e := &env{dir: dir, cfg: cfg, out: &bytes.Buffer{}, hits: &hits}
	e.repo = gittest.New(func() string {
		return e.read(t, "config.yaml") + "\x00" + e.read(t, "CHANGELOG.md")
	})
	return e
}

func (e *env) read(t *testing.T, name string) string {
	data, err := os.ReadFile(filepath.Join(e.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}

func (e *env) run(t *testing.T, opts Options) (version.Resolution, error) {
	t.Helper()
	opts.WorkDir = e.dir
	opts.Out = e.out
	opts.Runner = e.repo
	opts.Clock = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local) }

	p, err := New(e.cfg, opts)
	require.NoError(t, err)
	return p.Run(context.Background())
}

func TestRunRemoteNotFoundFallsBackToAuto(t *testing.T) {
	e := newEnv(t, http.StatusNotFound, `{"message":"Not Found"}`)

	res, err := e.run(t, Options{})
	require.NoError(t, err)

	assert.Equal(t, version.SourceAuto, res.Source)
	assert.Equal(t, "2024.01.01.1", res.Version)
	assert.EqualValues(t, 1, *e.hits)
	assert.Equal(t, "name: Fusion\nslug: fusion\n  version: 2024.01.01.1\nports:\n  - 5050/tcp\n", e.read(t, "config.yaml"))
	assert.Equal(t, "# v2024.01.01.1\n\nAuto fallback (no releases in repo).", e.read(t, "CHANGELOG.md"))
	assert.Equal(t, []string{
		"add config.yaml CHANGELOG.md",
		"commit -m release: 2024.01.01.1",
		"tag -d v2024.01.01.1",
		"push origin :refs/tags/v2024.01.01.1",
		"tag v2024.01.01.1",
		"push",
		"push origin v2024.01.01.1",
	}, e.repo.Lines())
	assert.Contains(t, e.out.String(), "PLAN")
	assert.Contains(t, e.out.String(), "pushed with tag and latest.")
	assert.Contains(t, e.out.String(), "Done.")
}

func TestRunRemoteRelease(t *testing.T) {
	e := newEnv(t, http.StatusOK, `{"tag_name":"2023.11.02.4","body":"## Fixes\n- things"}`)

	res, err := e.run(t, Options{})
	require.NoError(t, err)

	assert.Equal(t, version.SourceRemote, res.Source)
	assert.Equal(t, "v2023.11.02.4", res.Tag)
	assert.Contains(t, e.read(t, "config.yaml"), "  version: 2023.11.02.4\n")
	assert.Equal(t, "## Fixes\n- things", e.read(t, "CHANGELOG.md"))
	assert.Equal(t, "v2023.11.02.4", lastLine(e.repo.Lines())[len("push origin "):])
}

func TestRunExplicitNeverQueriesRemote(t *testing.T) {
	for _, v := range []string{"auto", "1.2.3"} {
		e := newEnv(t, http.StatusOK, `{"tag_name":"v9.9.9"}`)

		res, err := e.run(t, Options{Version: v, NoPush: true})
		require.NoError(t, err)

		assert.Equal(t, version.SourceExplicit, res.Source)
		assert.Zero(t, *e.hits, v)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	e := newEnv(t, http.StatusNotFound, "")
	// a stale tag of the same name already exists on both sides
	e.repo.LocalTags["v5.0.0"] = "stale"
	e.repo.RemoteTags["v5.0.0"] = "stale"

	_, err := e.run(t, Options{Version: "5.0.0", Notes: "notes"})
	require.NoError(t, err)
	cfg1, log1 := e.read(t, "config.yaml"), e.read(t, "CHANGELOG.md")
	tag1 := e.repo.RemoteTags["v5.0.0"]

	_, err = e.run(t, Options{Version: "5.0.0", Notes: "notes"})
	require.NoError(t, err)

	assert.Equal(t, cfg1, e.read(t, "config.yaml"))
	assert.Equal(t, log1, e.read(t, "CHANGELOG.md"))
	assert.Equal(t, tag1, e.repo.RemoteTags["v5.0.0"])
	assert.Equal(t, tag1, e.repo.LocalTags["v5.0.0"])
	assert.NotEqual(t, "stale", tag1)
	assert.Equal(t, 1, e.repo.Commits, "second commit has nothing to record")
}

func TestRunLatestOnly(t *testing.T) {
	e := newEnv(t, http.StatusNotFound, "")

	_, err := e.run(t, Options{Version: "1.0", LatestOnly: true})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"add config.yaml CHANGELOG.md",
		"commit -m release: 1.0",
		"push",
	}, e.repo.Lines())
	assert.Empty(t, e.repo.LocalTags)
	assert.Contains(t, e.out.String(), "pushed (latest only).")
}

func TestRunNoPush(t *testing.T) {
	e := newEnv(t, http.StatusNotFound, "")

	_, err := e.run(t, Options{Version: "1.0", NoPush: true, LatestOnly: true})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"add config.yaml CHANGELOG.md",
		"commit -m release: 1.0",
	}, e.repo.Lines())
	assert.Contains(t, e.out.String(), "Done.")
}

func TestRunDryRun(t *testing.T) {
	e := newEnv(t, http.StatusNotFound, "")

	res, err := e.run(t, Options{Version: "auto", DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, "2024.01.01.1", res.Version)
	assert.Equal(t, configYAML, e.read(t, "config.yaml"))
	assert.NoFileExists(t, filepath.Join(e.dir, "CHANGELOG.md"))
	assert.Empty(t, e.repo.Calls)
	assert.Contains(t, e.out.String(), "# v2024.01.01.1")
}

func TestRunMissingConfigIsFatal(t *testing.T) {
	e := newEnv(t, http.StatusNotFound, "")
	require.NoError(t, os.Remove(filepath.Join(e.dir, "config.yaml")))

	_, err := e.run(t, Options{Version: "1.0"})
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Empty(t, e.repo.Calls)
	assert.NoFileExists(t, filepath.Join(e.dir, "CHANGELOG.md"))
}

func TestRunDryRunMissingConfigIsFatal(t *testing.T) {
	e := newEnv(t, http.StatusNotFound, "")
	require.NoError(t, os.Remove(filepath.Join(e.dir, "config.yaml")))

	_, err := e.run(t, Options{Version: "1.0", DryRun: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Empty(t, e.repo.Calls)
	assert.NotContains(t, e.out.String(), "Done.")
}

func TestRunToleratesCommitFailure(t *testing.T) {
	e := newEnv(t, http.StatusNotFound, "")
	e.repo.Fail["commit"] = errors.New("nothing to commit")

	_, err := e.run(t, Options{Version: "1.0"})
	require.NoError(t, err)
	assert.Contains(t, e.repo.RemoteTags, "v1.0")
}

func TestRunTagPushFailureIsFatal(t *testing.T) {
	e := newEnv(t, http.StatusNotFound, "")
	e.repo.Fail["push origin v1.0"] = errors.New("permission denied")

	_, err := e.run(t, Options{Version: "1.0"})
	assert.Error(t, err)
	assert.NotContains(t, e.out.String(), "Done.")
}

func TestRunBeforeHookFailFast(t *testing.T) {
	e := newEnv(t, http.StatusNotFound, "")
	e.cfg.Before = []config.Hook{{Cmd: "false", FailFast: true}}

	_, err := e.run(t, Options{Version: "1.0"})
	assert.Error(t, err)
	assert.Empty(t, e.repo.Calls)
}

func TestRunCommitMessageTemplate(t *testing.T) {
	e := newEnv(t, http.StatusNotFound, "")
	e.cfg.CommitMessage = "chore(release): {{ .Tag }} for {{ .Repo }}"

	_, err := e.run(t, Options{Version: "2.0", NoPush: true})
	require.NoError(t, err)
	assert.Contains(t, e.repo.Lines(), "commit -m chore(release): v2.0 for ha-fusion")
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Timeout = "soon"

	_, err := New(cfg, Options{})
	assert.Error(t, err)
}

func lastLine(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
