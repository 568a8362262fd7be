package repository

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"

	"autograde/internal/grading/model"
	appErr "autograde/pkg/errors"
	"autograde/pkg/utils/fsutil"
	"autograde/pkg/utils/logger"

	"go.uber.org/zap"
)

// Markers around the final grade in a result record. Other tools scan
// records for these, so they must not change.
const (
	GradeStartTag = `<p class="grade"><b>Grade:</b> `
	GradeEndTag   = `</p>`
)

const DefaultResultExt = "txt"

// ResultStore writes result records into assignment directories and files
// graded submissions next to them.
type ResultStore struct {
	ext string
}

// NewResultStore creates a ResultStore writing records with extension ext.
func NewResultStore(ext string) *ResultStore {
	if ext == "" {
		ext = DefaultResultExt
	}
	return &ResultStore{ext: ext}
}

// Ext returns the record file extension.
func (s *ResultStore) Ext() string {
	return s.ext
}

// Open removes any earlier records for sub and starts a new grade-less one.
func (s *ResultStore) Open(ctx context.Context, sub model.Submission, a model.Assignment) (*Record, error) {
	base := sub.Base()
	old, err := filepath.Glob(filepath.Join(a.Path, base+"-*."+s.ext))
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ResultsNotStored, "list old records failed")
	}
	for _, path := range old {
		if err := os.Remove(path); err != nil {
			return nil, appErr.Wrapf(err, appErr.ResultsNotStored, "remove old record %s failed", filepath.Base(path))
		}
		logger.Debug(ctx, "removed old record", zap.String("record", filepath.Base(path)))
	}

	path := filepath.Join(a.Path, recordName(base, model.NoGrade, "", s.ext))
	f, err := os.Create(path)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ResultsNotStored, "create record failed").
			WithDetail("record", path)
	}
	r := &Record{file: f, w: bufio.NewWriter(f), dir: a.Path, base: base, ext: s.ext, path: path}
	r.line(`<div class="grader">`)
	return r, nil
}

// MoveSubmission files the queued submission into its assignment directory.
func (s *ResultStore) MoveSubmission(ctx context.Context, sub model.Submission, a model.Assignment) (string, error) {
	dst := filepath.Join(a.Path, sub.Filename)
	if err := fsutil.Move(sub.Path, dst); err != nil {
		return "", appErr.Wrapf(err, appErr.ResultsNotStored, "move submission failed").
			WithDetail("submission", sub.Filename)
	}
	return dst, nil
}

// Record is a result record being written. It is created under its
// grade-less name and renamed once the grade is known.
type Record struct {
	file *os.File
	w    *bufio.Writer
	dir  string
	base string
	ext  string
	path string
}

// Path returns the record's current location.
func (r *Record) Path() string {
	return r.path
}

func (r *Record) line(s string) {
	_, _ = r.w.WriteString(s)
	_ = r.w.WriteByte('\n')
}

// WriteStep appends one step's block: its label, its grade if set, and its
// output. Output starting with '<' is taken as HTML; anything else is
// escaped into a <pre>.
func (r *Record) WriteStep(kind, label string, grade model.Grade, output string) {
	r.line(`<div class="` + kind + `">`)
	var b strings.Builder
	b.WriteString(`<p><span class="displayName">` + label + `:</span>`)
	if grade.IsSet() {
		b.WriteString(" " + gradeHTML(grade))
	}
	b.WriteString("</p>")
	r.line(b.String())
	if output != "" {
		if output[0] == '<' {
			r.line(output)
		} else {
			r.line("<pre>\n" + model.EscapeText(output) + "</pre>")
		}
	}
	r.line("</div>")
}

// WriteError notes a process error in place of further step blocks.
func (r *Record) WriteError(msg string) {
	r.line("<pre>" + model.EscapeText(msg) + "</pre>")
}

// Finish writes the grade markers, closes the record and renames it to
// carry the grade. It returns the final path.
func (r *Record) Finish(grade model.Grade) (string, error) {
	if r.file == nil {
		return r.path, nil
	}
	r.line(GradeStartTag + grade.String() + GradeEndTag)
	r.line("</div>")
	err := r.w.Flush()
	if closeErr := r.file.Close(); err == nil {
		err = closeErr
	}
	r.file = nil
	if err != nil {
		return r.path, appErr.Wrapf(err, appErr.ResultsNotStored, "write record failed")
	}

	final := filepath.Join(r.dir, recordName(r.base, grade, "", r.ext))
	if err := os.Rename(r.path, final); err != nil {
		return r.path, appErr.Wrapf(err, appErr.ResultsNotStored, "rename record failed")
	}
	r.path = final
	return final, nil
}

// gradeHTML colors symbolic grades; numbers are printed as they are.
func gradeHTML(g model.Grade) string {
	if !g.IsSymbolic() {
		return g.String()
	}
	class := "fail"
	if g.Kind == model.GradeOK {
		class = "success"
	}
	return `<span class="` + class + `">` + g.String() + `</span>`
}
