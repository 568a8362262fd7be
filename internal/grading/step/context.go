package step

import (
	"os"
	"sort"
	"strings"

	"autograde/internal/grading/model"
	appErr "autograde/pkg/errors"
)

// Context is the state shared by the steps of one submission's run.
// Steps exchange results through namespaced values, keyed by step kind.
type Context struct {
	Workspace   string
	GradersRoot string
	Submission  model.Submission
	Assignment  model.Assignment

	// Filename is the main file in the workspace. It starts as the
	// submission's canonical name and may be replaced by verify-artifact.
	Filename string

	values map[string]map[string]string
}

// NewContext returns a fresh context for one submission.
func NewContext(workspace, gradersRoot string, sub model.Submission, a model.Assignment) *Context {
	return &Context{
		Workspace:   workspace,
		GradersRoot: gradersRoot,
		Submission:  sub,
		Assignment:  a,
		Filename:    sub.CanonicalName(),
		values:      make(map[string]map[string]string),
	}
}

// Set records a value under a step namespace.
func (c *Context) Set(namespace, key, value string) {
	ns, ok := c.values[namespace]
	if !ok {
		ns = make(map[string]string)
		c.values[namespace] = ns
	}
	ns[key] = value
}

// Get reads a value recorded by an earlier step.
func (c *Context) Get(namespace, key string) (string, bool) {
	v, ok := c.values[namespace][key]
	return v, ok
}

// Compiled returns "1" if an earlier compile step succeeded, else "0".
func (c *Context) Compiled() string {
	if v, ok := c.Get(KindCompile, "compiled"); ok && v == "1" {
		return "1"
	}
	return "0"
}

// Lookup resolves a template variable.
//
// Built-in names are filename, name, ext, user, username, assignment,
// workspace, graders and compiled. Any other name of the form ns.key reads
// a namespaced value.
func (c *Context) Lookup(name string) (string, bool) {
	switch name {
	case "filename":
		return c.Filename, true
	case "name":
		base, _, _ := strings.Cut(c.Filename, ".")
		return base, true
	case "ext":
		_, ext, _ := strings.Cut(c.Filename, ".")
		return ext, true
	case "user":
		return c.Submission.Owner, true
	case "username":
		return c.Submission.OwnerName, true
	case "assignment":
		return c.Submission.Assignment, true
	case "workspace":
		return c.Workspace, true
	case "graders":
		return c.GradersRoot, true
	case "compiled":
		return c.Compiled(), true
	}
	ns, key, ok := strings.Cut(name, ".")
	if !ok {
		return "", false
	}
	return c.Get(ns, key)
}

// Expand substitutes ${var} references in tpl. Unknown variables are an error.
func (c *Context) Expand(tpl string) (string, error) {
	return expand(tpl, c.Lookup)
}

func expand(tpl string, lookup func(string) (string, bool)) (string, error) {
	var missing []string
	out := os.Expand(tpl, func(name string) string {
		v, ok := lookup(name)
		if !ok {
			missing = append(missing, name)
		}
		return v
	})
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", appErr.Newf(appErr.GraderError, "unknown template variable(s) %s in %q",
			strings.Join(missing, ", "), tpl)
	}
	return out, nil
}

// withOverrides layers extra variables over the context lookup.
func (c *Context) withOverrides(extra map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		if v, ok := extra[name]; ok {
			return v, true
		}
		return c.Lookup(name)
	}
}
