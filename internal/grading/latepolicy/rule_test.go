package latepolicy

import (
	"testing"
	"time"

	"autograde/internal/grading/model"
	appErr "autograde/pkg/errors"
)

func ts(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := model.ParseTimestamp(s)
	if err != nil {
		t.Fatalf("parse timestamp %q: %v", s, err)
	}
	return v
}

func TestParse_Errors(t *testing.T) {
	deadline := ts(t, "20140101-0000")
	tests := []struct {
		name   string
		policy string
		code   appErr.ErrorCode
	}{
		{name: "garbage", policy: "5x:-1", code: appErr.InvalidLatePolicy},
		{name: "missing colon", policy: "+5d", code: appErr.InvalidLatePolicy},
		{name: "trailing junk", policy: "+5d:-1/1dX", code: appErr.InvalidLatePolicy},
		{name: "zero relative span", policy: "+0d:-1", code: appErr.InvalidLatePolicy},
		{name: "timestamp at deadline", policy: "20140101-0000:-1", code: appErr.InvalidLatePolicy},
		{name: "sign without value", policy: "+5d:-", code: appErr.InvalidLatePolicy},
		{name: "unit without value", policy: "+5d:%", code: appErr.InvalidLatePolicy},
		{name: "empty repeater", policy: "+5d:-1/", code: appErr.InvalidLatePolicy},
		{name: "zero repeater", policy: "+5d:-1/0d", code: appErr.InvalidLatePolicy},
		{name: "hours before days", policy: "+5h2d:-1", code: appErr.InvalidLatePolicy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.policy, deadline)
			if !appErr.Is(err, tt.code) {
				t.Fatalf("Parse(%q) error = %v, want code %d", tt.policy, err, tt.code)
			}
		})
	}
}

func TestParse_Spans(t *testing.T) {
	deadline := ts(t, "20140101-0000")
	tests := []struct {
		policy  string
		end     string
		early   bool
		hasRule bool
	}{
		{policy: "+5d:-1/1d", end: "20140106-0000", hasRule: true},
		{policy: "5d:-1/1d", end: "20140106-0000", hasRule: true},
		{policy: "48h:-10%", end: "20140103-0000", hasRule: true},
		{policy: "-3d:+5$/1d", end: "20131229-0000", early: true, hasRule: true},
		{policy: "1d2h30m:", end: "20140102-0230"},
		{policy: "20140110-1200:40$", end: "20140110-1200", hasRule: true},
		{policy: "+:10%", end: "99991231-2359", hasRule: true},
		{policy: ":", end: "99991231-2359"},
	}

	for _, tt := range tests {
		t.Run(tt.policy, func(t *testing.T) {
			r, err := Parse(tt.policy, deadline)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := model.FormatTimestamp(r.End); got != tt.end {
				t.Fatalf("end = %s, want %s", got, tt.end)
			}
			if r.IsEarly() != tt.early {
				t.Fatalf("early = %v, want %v", r.IsEarly(), tt.early)
			}
			if r.HasRule != tt.hasRule {
				t.Fatalf("hasRule = %v, want %v", r.HasRule, tt.hasRule)
			}
		})
	}

	open, err := Parse("-:", deadline)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !open.IsEarly() || open.End.Year() != 0 {
		t.Fatalf("open early span end = %v", open.End)
	}
}

func TestAdjust(t *testing.T) {
	deadline := ts(t, "20140101-0000")
	tests := []struct {
		name   string
		policy string
		score  model.Grade
		at     string
		want   float64
	}{
		{name: "late per day", policy: "+5d:-1/1d", score: model.Numeric(5), at: "20140104-0000", want: -3},
		{name: "late clamps to span end", policy: "+5d:-1/1d", score: model.Numeric(5), at: "20140108-0000", want: -5},
		{name: "partial day counts", policy: "+5d:-1/1d", score: model.Numeric(5), at: "20140101-0001", want: -1},
		{name: "early bonus full days", policy: "-5d:+1/1d", score: model.Numeric(5), at: "20131230-0000", want: 2},
		{name: "early bonus partial day dropped", policy: "-5d:+1/1d", score: model.Numeric(5), at: "20131230-2300", want: 1},
		{name: "early clamps to span start", policy: "-5d:+1/1d", score: model.Numeric(5), at: "20131223-0000", want: 5},
		{name: "percent of total", policy: "48h:-10%", score: model.Numeric(4), at: "20140102-0000", want: -0.5},
		{name: "percent of score", policy: "+2d:-50$", score: model.Numeric(4), at: "20140102-0000", want: -2},
		{name: "percent of score falls back for ERR", policy: "+2d:-50$", score: model.ERRGrade, at: "20140102-0000", want: -2.5},
		{name: "set returns delta", policy: "+2d:=40$", score: model.Numeric(5), at: "20140102-0000", want: -3},
		{name: "set ignores repeater", policy: "+2d:2/1h", score: model.Numeric(5), at: "20140102-0000", want: -3},
		{name: "set on symbolic is zero", policy: "+2d:=1", score: model.OKGrade, at: "20140102-0000", want: 0},
		{name: "mark only", policy: "1d:", score: model.Numeric(5), at: "20140101-1200", want: 0},
		{name: "rounded", policy: "+5d:-1%/1h", score: model.Numeric(5), at: "20140101-0300", want: -0.15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Parse(tt.policy, deadline)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			got, err := r.Adjust(tt.score, 5, ts(t, tt.at), 2)
			if err != nil {
				t.Fatalf("adjust: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Adjust() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAdjust_WrongSideOfDeadline(t *testing.T) {
	deadline := ts(t, "20140101-0000")
	late, _ := Parse("+5d:-1/1d", deadline)
	if _, err := late.Adjust(model.Numeric(5), 5, ts(t, "20131231-0000"), 2); !appErr.Is(err, appErr.PolicyNotApplicable) {
		t.Fatalf("late rule on early timestamp: %v", err)
	}
	early, _ := Parse("-5d:+1/1d", deadline)
	if _, err := early.Adjust(model.Numeric(5), 5, ts(t, "20140102-0000"), 2); !appErr.Is(err, appErr.PolicyNotApplicable) {
		t.Fatalf("early rule on late timestamp: %v", err)
	}
	if _, err := early.Adjust(model.Numeric(5), 5, deadline, 2); err != nil {
		t.Fatalf("deadline itself counts as early: %v", err)
	}
}

func TestAdjust_EarlyRuleAtDeadline(t *testing.T) {
	deadline := ts(t, "20140101-0000")
	tests := []struct {
		name   string
		policy string
		at     string
		want   float64
		wantNA bool
	}{
		{name: "flat bonus at deadline", policy: "-1d:+5%", at: "20140101-0000", want: 0.25},
		{name: "flat bonus a day early", policy: "-1d:+5%", at: "20131231-0000", want: 0.25},
		{name: "flat bonus one minute late", policy: "-1d:+5%", at: "20140101-0001", wantNA: true},
		{name: "repeating bonus at deadline", policy: "-5d:+1/1d", at: "20140101-0000", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Parse(tt.policy, deadline)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			got, err := r.Adjust(model.Numeric(4), 5, ts(t, tt.at), 2)
			if tt.wantNA {
				if !appErr.Is(err, appErr.PolicyNotApplicable) {
					t.Fatalf("err = %v, want PolicyNotApplicable", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("adjust: %v", err)
			}
			if got != tt.want {
				t.Fatalf("Adjust() = %v, want %v", got, tt.want)
			}
		})
	}
}
