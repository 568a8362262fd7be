package repository

import (
	"regexp"
	"strconv"
	"strings"

	"autograde/internal/grading/model"
	appErr "autograde/pkg/errors"
)

const assignmentExpr = `[A-Z]\d\d[a-z]?`

var (
	assignmentPattern    = regexp.MustCompile(`^` + assignmentExpr + `$`)
	assignmentDirPattern = regexp.MustCompile(`^(` + assignmentExpr + `)-(\d{8}-\d{4})(?:-(\d+))?(?:-(\w+))?$`)
	submittedPattern     = regexp.MustCompile(`^(\w+)(` + assignmentExpr + `)-(\d{8}-\d{4})\.([\w.]+)$`)
	gradedPattern        = regexp.MustCompile(`^(\w+)(` + assignmentExpr + `)-(\d{8}-\d{4})-([\d.]*|ERR|OK|X)(-[HC]+)?\.([\w.]+)$`)
	timestampPattern     = regexp.MustCompile(`\d{8}-\d{4}`)
)

// ValidAssignmentName reports whether name is an assignment identifier like A01 or B12c.
func ValidAssignmentName(name string) bool {
	return assignmentPattern.MatchString(name)
}

// ParseSubmitted parses a timestamped submission filename,
// <owner><assignment>-<YYYYMMDD-HHMM>.<ext>.
func ParseSubmitted(filename string) (model.Submission, error) {
	m := submittedPattern.FindStringSubmatch(filename)
	if m == nil {
		return model.Submission{}, appErr.Newf(appErr.BadSubmissionFilename, "bad submission filename %q", filename).
			WithDetail("filename", filename)
	}
	ts, err := model.ParseTimestamp(m[3])
	if err != nil {
		return model.Submission{}, appErr.Wrapf(err, appErr.BadSubmissionFilename, "bad timestamp in %q", filename)
	}
	return model.Submission{
		Filename:   filename,
		OwnerName:  m[1],
		Owner:      strings.ToLower(m[1]),
		Assignment: m[2],
		Timestamp:  ts,
		Ext:        m[4],
	}, nil
}

// ParseGraded parses a result record filename,
// <owner><assignment>-<YYYYMMDD-HHMM>-<grade>[-HC].<resultExt>.
// The returned record's submission has no extension; the caller knows it.
func ParseGraded(filename string) (model.GradeRecord, error) {
	m := gradedPattern.FindStringSubmatch(filename)
	if m == nil {
		return model.GradeRecord{}, appErr.Newf(appErr.BadSubmissionFilename, "bad grade record filename %q", filename).
			WithDetail("filename", filename)
	}
	ts, err := model.ParseTimestamp(m[3])
	if err != nil {
		return model.GradeRecord{}, appErr.Wrapf(err, appErr.BadSubmissionFilename, "bad timestamp in %q", filename)
	}
	grade, err := model.ParseGrade(m[4])
	if err != nil {
		return model.GradeRecord{}, err
	}
	return model.GradeRecord{
		Submission: model.Submission{
			OwnerName:  m[1],
			Owner:      strings.ToLower(m[1]),
			Assignment: m[2],
			Timestamp:  ts,
		},
		Filename:      filename,
		Grade:         grade,
		HumanVerified: strings.Contains(m[5], "H"),
		HumanComment:  strings.Contains(m[5], "C"),
	}, nil
}

// assignmentDir is the parsed form of a graded/<A01>-<due>[-max][-type] name.
type assignmentDir struct {
	name     string
	due      string
	maxScore int
	hasMax   bool
	typeName string
}

func parseAssignmentDir(dir string) (assignmentDir, bool) {
	m := assignmentDirPattern.FindStringSubmatch(dir)
	if m == nil {
		return assignmentDir{}, false
	}
	d := assignmentDir{name: m[1], due: m[2], typeName: m[4]}
	if m[3] != "" {
		n, err := strconv.Atoi(m[3])
		if err != nil {
			return assignmentDir{}, false
		}
		d.maxScore = n
		d.hasMax = true
	}
	return d, true
}

// recordName returns the result record name for a submission base and grade.
// An unset grade gives the grade-less working name.
func recordName(base string, grade model.Grade, flags, ext string) string {
	return base + "-" + grade.String() + flags + "." + ext
}
