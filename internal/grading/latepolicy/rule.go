package latepolicy

import (
	"math"
	"regexp"
	"strconv"
	"time"

	"autograde/internal/grading/model"
	appErr "autograde/pkg/errors"
)

// A policy is "span:rule".
//
//	span = [+|-][YYYYMMDD-HHMM | [#d][#h][#m]]
//	rule = [+|-|=][#][%|$][/[#d][#h][#m]]
var policyPattern = regexp.MustCompile(
	`^(\+|-)?((\d{8}-\d{4})|((\d+d)?(\d+h)?(\d+m)?))` +
		`:` +
		`(\+|-|=)?(\d*)([%$])?(/(\d+d)?(\d+h)?(\d+m)?)?$`)

// Bounds used by spans with no explicit length.
var (
	openStart = time.Date(0, time.January, 1, 0, 0, 0, 0, time.UTC)
	openEnd   = time.Date(9999, time.December, 31, 23, 59, 0, 0, time.UTC)
)

// Rule signs.
const (
	SignAdd byte = '+'
	SignSub byte = '-'
	SignSet byte = '='
)

// Rule units. UnitPoints is a raw point value.
const (
	UnitPoints       byte = 0
	UnitPercentTotal byte = '%'
	UnitPercentScore byte = '$'
)

// parsed is the deadline-independent part of a parsed policy.
type parsed struct {
	raw       string
	spanSign  byte
	absolute  string
	relative  time.Duration
	openEnded bool

	hasRule bool
	sign    byte
	value   int
	unit    byte
	repeat  time.Duration
}

// Rule is one parsed late policy bound to an assignment deadline.
type Rule struct {
	Raw      string
	Deadline time.Time
	End      time.Time

	// HasRule is false for policies that only mark submissions late or early.
	HasRule bool
	Sign    byte
	Value   int
	Unit    byte
	Repeat  time.Duration
}

// Parse parses a policy string against an assignment deadline.
func Parse(raw string, deadline time.Time) (*Rule, error) {
	s, err := parsePolicy(raw)
	if err != nil {
		return nil, err
	}
	return s.bind(deadline)
}

// Validate checks the syntax of a policy string without a deadline.
func Validate(raw string) error {
	_, err := parsePolicy(raw)
	return err
}

func parsePolicy(raw string) (parsed, error) {
	m := policyPattern.FindStringSubmatch(raw)
	if m == nil {
		return parsed{}, appErr.PolicyError(raw, "unparsable")
	}
	s := parsed{raw: raw, spanSign: SignAdd}
	if m[1] == "-" {
		s.spanSign = SignSub
	}

	switch {
	case m[3] != "":
		s.absolute = m[3]
	case m[4] != "":
		d, err := units(raw, m[5], m[6], m[7])
		if err != nil {
			return parsed{}, err
		}
		if d == 0 {
			return parsed{}, appErr.PolicyError(raw, "zero length span")
		}
		s.relative = d
	default:
		s.openEnded = true
	}

	if m[8] == "" && m[9] == "" && m[10] == "" && m[11] == "" {
		return s, nil
	}
	s.hasRule = true
	s.sign = SignSet
	if m[8] != "" {
		s.sign = m[8][0]
	}
	if m[9] == "" {
		return parsed{}, appErr.PolicyError(raw, "no grade change value given")
	}
	value, err := strconv.Atoi(m[9])
	if err != nil {
		return parsed{}, appErr.PolicyError(raw, "grade change value out of range")
	}
	s.value = value
	if m[10] != "" {
		s.unit = m[10][0]
	}
	if m[11] != "" {
		if m[12] == "" && m[13] == "" && m[14] == "" {
			return parsed{}, appErr.PolicyError(raw, "empty repeat interval")
		}
		repeat, err := units(raw, m[12], m[13], m[14])
		if err != nil {
			return parsed{}, err
		}
		if repeat == 0 {
			return parsed{}, appErr.PolicyError(raw, "zero repeat interval")
		}
		s.repeat = repeat
	}
	return s, nil
}

// units converts "#d", "#h" and "#m" components to a duration.
func units(raw, days, hours, minutes string) (time.Duration, error) {
	var total time.Duration
	for _, part := range []struct {
		text string
		unit time.Duration
	}{
		{days, 24 * time.Hour},
		{hours, time.Hour},
		{minutes, time.Minute},
	} {
		if part.text == "" {
			continue
		}
		n, err := strconv.Atoi(part.text[:len(part.text)-1])
		if err != nil || n > 100000 {
			return 0, appErr.PolicyError(raw, "span component out of range")
		}
		total += time.Duration(n) * part.unit
	}
	return total, nil
}

func (s parsed) bind(deadline time.Time) (*Rule, error) {
	r := &Rule{
		Raw:      s.raw,
		Deadline: deadline,
		HasRule:  s.hasRule,
		Sign:     s.sign,
		Value:    s.value,
		Unit:     s.unit,
		Repeat:   s.repeat,
	}
	switch {
	case s.absolute != "":
		end, err := model.ParseTimestamp(s.absolute)
		if err != nil {
			return nil, appErr.PolicyError(s.raw, "invalid timestamp")
		}
		r.End = end
	case s.openEnded:
		r.End = openEnd
		if s.spanSign == SignSub {
			r.End = openStart
		}
	default:
		if s.spanSign == SignSub {
			r.End = deadline.Add(-s.relative)
		} else {
			r.End = deadline.Add(s.relative)
		}
	}
	if r.End.Equal(deadline) {
		return nil, appErr.PolicyError(s.raw, "span ends at the deadline")
	}
	return r, nil
}

// IsEarly reports whether the rule covers time before the deadline.
func (r *Rule) IsEarly() bool {
	return r.End.Before(r.Deadline)
}

// Covers reports whether ts lies within the rule's span.
func (r *Rule) Covers(ts time.Time) bool {
	if r.IsEarly() {
		return !ts.After(r.Deadline) && !ts.Before(r.End)
	}
	return ts.After(r.Deadline) && !ts.After(r.End)
}

// Adjust computes the grade change this rule gives a submission made at ts.
// The penalty is not capped by the score itself. For "=" rules the result is
// the delta that moves a numeric score onto the target, and 0 for symbolic
// scores. A "$" rule on a non-numeric score falls back to "%".
func (r *Rule) Adjust(score model.Grade, total float64, ts time.Time, precision int) (float64, error) {
	var span time.Duration
	if r.IsEarly() {
		// the deadline itself is still early
		if ts.After(r.Deadline) {
			return 0, appErr.Newf(appErr.PolicyNotApplicable,
				"early policy %q does not apply to %s", r.Raw, model.FormatTimestamp(ts))
		}
		if ts.Before(r.End) {
			ts = r.End
		}
		span = r.Deadline.Sub(ts)
	} else {
		if !ts.After(r.Deadline) {
			return 0, appErr.Newf(appErr.PolicyNotApplicable,
				"late policy %q does not apply to %s", r.Raw, model.FormatTimestamp(ts))
		}
		if ts.After(r.End) {
			ts = r.End
		}
		span = ts.Sub(r.Deadline)
	}

	if !r.HasRule {
		return 0, nil
	}

	var modifier float64
	switch {
	case r.Unit == UnitPoints:
		modifier = float64(r.Value)
	case r.Unit == UnitPercentScore && score.IsNumeric():
		modifier = float64(r.Value) * score.Value / 100
	default:
		modifier = float64(r.Value) * total / 100
	}

	if r.Sign == SignSet {
		if !score.IsNumeric() {
			return 0, nil
		}
		return model.Round(modifier-score.Value, precision), nil
	}
	if r.Sign == SignSub {
		modifier = -modifier
	}

	times := 1.0
	if r.Repeat > 0 {
		periods := float64(span) / float64(r.Repeat)
		if r.IsEarly() {
			times = math.Floor(periods)
		} else {
			times = math.Ceil(periods)
		}
	}
	return model.Round(modifier*times, precision), nil
}

func (r *Rule) String() string {
	return r.Raw
}
