package step

import (
	"context"

	"autograde/internal/grading/model"
)

// Step kinds accepted in configuration.
const (
	KindCompile        = "compile"
	KindCopyGraders    = "copy-graders"
	KindInvokeGrader   = "invoke-grader"
	KindUnzip          = "unzip"
	KindVerifyArtifact = "verify-artifact"
	KindDisplayFiles   = "display-files"
)

// Report is what a step hands back after running.
//
// Passed reports whether the step achieved its purpose. A compile that did
// not compile is not passed, yet it is not an error either. Grade is left
// unset by steps that do not grade. Output is shown to the submitter: an
// HTML fragment when it begins with '<', otherwise plain text.
type Report struct {
	Passed bool
	Grade  model.Grade
	Output string
}

// Step is one unit of grading work. Run returns an error only when the step
// could not carry out its own mechanics; the runner turns that into ERR.
type Step interface {
	Kind() string
	Label() string
	Required() bool
	Run(ctx context.Context, sc *Context) (Report, error)
}

// Base carries the fields every step shares.
type Base struct {
	kind     string
	label    string
	required bool
}

func newBase(kind, label string, required bool) Base {
	return Base{kind: kind, label: label, required: required}
}

func (b Base) Kind() string   { return b.kind }
func (b Base) Label() string  { return b.label }
func (b Base) Required() bool { return b.required }
