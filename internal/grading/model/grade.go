package model

import (
	"math"
	"regexp"
	"strconv"

	appErr "autograde/pkg/errors"
)

// GradeKind distinguishes numeric grades from the symbolic ones.
type GradeKind uint8

const (
	// GradeNone means the producer has no opinion on grading.
	GradeNone GradeKind = iota
	GradeNumeric
	GradeOK
	GradeX
	GradeERR
)

const (
	symbolOK  = "OK"
	symbolX   = "X"
	symbolERR = "ERR"
)

// gradePattern is the on-disk grade vocabulary.
var gradePattern = regexp.MustCompile(`^([\d.]*|ERR|OK|X)$`)

// Grade is either a non-negative number or one of OK, X and ERR.
type Grade struct {
	Kind  GradeKind
	Value float64
}

var (
	NoGrade  = Grade{}
	OKGrade  = Grade{Kind: GradeOK}
	XGrade   = Grade{Kind: GradeX}
	ERRGrade = Grade{Kind: GradeERR}
)

// Numeric returns a numeric grade.
func Numeric(v float64) Grade {
	return Grade{Kind: GradeNumeric, Value: v}
}

func (g Grade) IsSet() bool      { return g.Kind != GradeNone }
func (g Grade) IsNumeric() bool  { return g.Kind == GradeNumeric }
func (g Grade) IsSymbolic() bool { return g.Kind == GradeOK || g.Kind == GradeX || g.Kind == GradeERR }
func (g Grade) IsERR() bool      { return g.Kind == GradeERR }

// String renders the grade the way it appears in record names and markers.
func (g Grade) String() string {
	switch g.Kind {
	case GradeNumeric:
		return strconv.FormatFloat(g.Value, 'f', -1, 64)
	case GradeOK:
		return symbolOK
	case GradeX:
		return symbolX
	case GradeERR:
		return symbolERR
	default:
		return ""
	}
}

// MarshalText lets grades travel as plain strings in JSON.
func (g Grade) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText parses the textual grade form.
func (g *Grade) UnmarshalText(text []byte) error {
	parsed, err := ParseGrade(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// Validate reports grades a step must never emit.
func (g Grade) Validate() error {
	if g.Kind == GradeNumeric && (g.Value < 0 || math.IsNaN(g.Value) || math.IsInf(g.Value, 0)) {
		return appErr.Newf(appErr.InvalidGradeFormat, "grade %v is not a non-negative number", g.Value)
	}
	return nil
}

// Rounded returns the grade rounded to precision decimal places.
func (g Grade) Rounded(precision int) Grade {
	if g.Kind != GradeNumeric {
		return g
	}
	return Numeric(Round(g.Value, precision))
}

// ParseGrade parses a stored grade. An empty grade is what a crashed
// grading run leaves behind and reads back as ERR.
func ParseGrade(s string) (Grade, error) {
	if !gradePattern.MatchString(s) {
		return NoGrade, appErr.Newf(appErr.InvalidGradeFormat, "invalid grade %q", s)
	}
	switch s {
	case "":
		return ERRGrade, nil
	case symbolOK:
		return OKGrade, nil
	case symbolX:
		return XGrade, nil
	case symbolERR:
		return ERRGrade, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return NoGrade, appErr.Wrapf(err, appErr.InvalidGradeFormat, "invalid grade %q", s)
	}
	return Numeric(v), nil
}

// Round rounds v half away from zero to precision decimal places.
func Round(v float64, precision int) float64 {
	if precision < 0 {
		return v
	}
	p := math.Pow(10, float64(precision))
	r := math.Round(v*p) / p
	if r == 0 {
		return 0 // drop negative zero
	}
	return r
}

// Aggregate folds step outcomes into one grade. ERR dominates, numeric
// outcomes are summed ignoring symbols, then X, then OK. The sum is rounded
// once at the end.
func Aggregate(grades []Grade, precision int) Grade {
	var (
		sum        float64
		hasNumeric bool
		hasX       bool
	)
	for _, g := range grades {
		switch g.Kind {
		case GradeERR:
			return ERRGrade
		case GradeNumeric:
			sum += g.Value
			hasNumeric = true
		case GradeX:
			hasX = true
		}
	}
	switch {
	case hasNumeric:
		return Numeric(Round(sum, precision))
	case hasX:
		return XGrade
	default:
		return OKGrade
	}
}

// FailedGrade is what a failed compile turns its configured grade into.
func FailedGrade(configured Grade) Grade {
	if configured.IsNumeric() {
		return Numeric(0)
	}
	return XGrade
}
