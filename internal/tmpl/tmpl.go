/*
Package tmpl provides template processing for Publisher.
*/
package tmpl

import (
	"bytes"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/oarkflow/publisher/internal/config"
)

// Context provides template context and rendering
type Context struct {
	data map[string]interface{}
}

// New creates a new template context
func New(cfg *config.Config, now time.Time) *Context {
	ctx := &Context{
		data: make(map[string]interface{}),
	}
	ctx.init(cfg, now)
	return ctx
}

// init initializes the template data
func (c *Context) init(cfg *config.Config, now time.Time) {
	c.data["Owner"] = cfg.Owner
	c.data["Repo"] = cfg.Repo
	c.data["ConfigFile"] = cfg.ConfigFile
	c.data["ChangelogFile"] = cfg.ChangelogFile
	c.data["TagPrefix"] = cfg.Prefix()
	c.data["Remote"] = cfg.Remote

	// Date/time
	c.data["Date"] = now.Format(time.RFC3339)
	c.data["Now"] = now
	c.data["Timestamp"] = now.Unix()

	// Environment
	env := make(map[string]string)
	for _, e := range os.Environ() {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 {
			env[parts[0]] = parts[1]
		}
	}
	c.data["Env"] = env
}

// WithRelease returns a copy of the context carrying the resolved release.
func (c *Context) WithRelease(version, tag, notes string) *Context {
	newCtx := &Context{data: c.Data()}
	newCtx.data["Version"] = version
	newCtx.data["Tag"] = tag
	newCtx.data["Notes"] = notes
	return newCtx
}

// Apply applies the template to a string
func (c *Context) Apply(tmpl string) (string, error) {
	t, err := template.New("").Funcs(funcs()).Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, c.data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// Data returns the template data
func (c *Context) Data() map[string]interface{} {
	result := make(map[string]interface{})
	for k, v := range c.data {
		result[k] = v
	}
	return result
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"replace":    strings.ReplaceAll,
		"tolower":    strings.ToLower,
		"toupper":    strings.ToUpper,
		"trim":       strings.TrimSpace,
		"trimprefix": strings.TrimPrefix,
		"trimsuffix": strings.TrimSuffix,
		"split":      strings.Split,
		"join":       strings.Join,
		"contains":   strings.Contains,
		"hasprefix":  strings.HasPrefix,
		"hassuffix":  strings.HasSuffix,
		"env":        os.Getenv,
		"default": func(def, val interface{}) interface{} {
			if val == nil || val == "" {
				return def
			}
			return val
		},
		"time": func(t time.Time, format string) string {
			return t.Format(format)
		},
	}
}
