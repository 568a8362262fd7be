package latepolicy

import (
	"testing"

	"autograde/internal/grading/model"
)

func TestAdjustedGrade(t *testing.T) {
	deadline := ts(t, "20140101-0000")
	rule, err := Parse("+5d:-1/1d", deadline)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg := Settings{Precision: 2, ResubmissionPenalty: -0.1}

	tests := []struct {
		name    string
		raw     model.Grade
		rule    *Rule
		count   int
		want    model.Grade
		late    float64
		resubmt float64
	}{
		{name: "late and resubmitted", raw: model.Numeric(5), rule: rule, count: 3, want: model.Numeric(1.8), late: -3, resubmt: -0.2},
		{name: "floored at zero", raw: model.Numeric(2), rule: rule, count: 2, want: model.Numeric(0), late: -3, resubmt: -0.1},
		{name: "symbolic unchanged", raw: model.XGrade, rule: rule, count: 2, want: model.XGrade, late: -3, resubmt: -0.1},
		{name: "no rule", raw: model.Numeric(4), count: 1, want: model.Numeric(4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adj, err := AdjustedGrade(tt.raw, tt.rule, 5, ts(t, "20140104-0000"), tt.count, cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if adj.Final != tt.want {
				t.Fatalf("final = %s, want %s", adj.Final, tt.want)
			}
			if adj.Late != tt.late || adj.Resubmission != tt.resubmt {
				t.Fatalf("late = %v resubmission = %v", adj.Late, adj.Resubmission)
			}
		})
	}
}
