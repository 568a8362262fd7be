package model

import (
	"testing"
	"time"

	appErr "autograde/pkg/errors"
)

func TestAggregate(t *testing.T) {
	tests := []struct {
		name   string
		grades []Grade
		want   Grade
	}{
		{name: "err dominates", grades: []Grade{OKGrade, Numeric(5), ERRGrade}, want: ERRGrade},
		{name: "numeric sum ignores symbols", grades: []Grade{Numeric(3), Numeric(2.5), OKGrade}, want: Numeric(5.5)},
		{name: "x over ok", grades: []Grade{OKGrade, XGrade}, want: XGrade},
		{name: "empty is ok", grades: nil, want: OKGrade},
		{name: "absent grades ignored", grades: []Grade{NoGrade, NoGrade}, want: OKGrade},
		{name: "x does not zero numeric", grades: []Grade{XGrade, Numeric(1.25)}, want: Numeric(1.25)},
		{name: "rounded once at end", grades: []Grade{Numeric(0.333), Numeric(0.333), Numeric(0.333)}, want: Numeric(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Aggregate(tt.grades, 2); got != tt.want {
				t.Fatalf("Aggregate() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	grades := []Grade{Numeric(1.115), OKGrade, Numeric(2)}
	first := Aggregate(grades, 2)
	second := Aggregate(grades, 2)
	if first != second {
		t.Fatalf("aggregate not stable: %s vs %s", first, second)
	}
}

func TestParseGrade(t *testing.T) {
	tests := []struct {
		in      string
		want    Grade
		wantErr bool
	}{
		{in: "OK", want: OKGrade},
		{in: "X", want: XGrade},
		{in: "ERR", want: ERRGrade},
		{in: "", want: ERRGrade},
		{in: "4.5", want: Numeric(4.5)},
		{in: "5", want: Numeric(5)},
		{in: "-1", wantErr: true},
		{in: "ok", wantErr: true},
		{in: ".", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseGrade(tt.in)
			if tt.wantErr {
				if !appErr.Is(err, appErr.InvalidGradeFormat) {
					t.Fatalf("expected InvalidGradeFormat, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseGrade(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestGradeString(t *testing.T) {
	if got := Numeric(4.5).String(); got != "4.5" {
		t.Fatalf("got %q", got)
	}
	if got := Numeric(5).String(); got != "5" {
		t.Fatalf("got %q", got)
	}
	if got := NoGrade.String(); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestGradeValidate(t *testing.T) {
	if err := Numeric(-0.5).Validate(); err == nil {
		t.Fatal("negative grade should be invalid")
	}
	if err := XGrade.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFailedGrade(t *testing.T) {
	if got := FailedGrade(Numeric(2)); got != Numeric(0) {
		t.Fatalf("numeric failure = %s", got)
	}
	if got := FailedGrade(OKGrade); got != XGrade {
		t.Fatalf("symbolic failure = %s", got)
	}
}

func TestTimestampAndOffset(t *testing.T) {
	ts, err := ParseTimestamp("20140101-1230")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if FormatTimestamp(ts) != "20140101-1230" {
		t.Fatalf("round trip = %s", FormatTimestamp(ts))
	}
	if _, err := ParseTimestamp("2014-01-01"); err == nil {
		t.Fatal("expected error for bad timestamp")
	}

	if got := FormatOffset(50*time.Hour + 5*time.Minute); got != "+2d 2h 05m" {
		t.Fatalf("late offset = %q", got)
	}
	if got := FormatOffset(-90 * time.Minute); got != "-0d 1h 30m" {
		t.Fatalf("early offset = %q", got)
	}
	if got := FormatOffset(0); got != "-0d 0h 00m" {
		t.Fatalf("zero offset = %q", got)
	}
}

func TestGradeRecordFlags(t *testing.T) {
	r := GradeRecord{HumanVerified: true, HumanComment: true}
	if r.Flags() != "-HC" {
		t.Fatalf("flags = %q", r.Flags())
	}
	if (GradeRecord{}).Flags() != "" {
		t.Fatal("expected no flags")
	}
}
