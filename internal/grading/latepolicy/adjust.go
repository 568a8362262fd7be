package latepolicy

import (
	"math"
	"time"

	"autograde/internal/grading/model"
)

// Adjustment explains how a raw grade became the adjusted grade.
type Adjustment struct {
	Raw          model.Grade `json:"raw"`
	Rule         string      `json:"rule,omitempty"`
	Late         float64     `json:"late"`
	Resubmission float64     `json:"resubmission"`
	Final        model.Grade `json:"final"`
}

// Settings carries the grade-wide knobs used when adjusting.
type Settings struct {
	Precision           int
	ResubmissionPenalty float64
}

// ResubmissionAdjustment is the penalty for every submission beyond the first.
func ResubmissionAdjustment(count int, penalty float64, precision int) float64 {
	if count <= 1 {
		return 0
	}
	return model.Round(float64(count-1)*penalty, precision)
}

// AdjustedGrade applies the late rule and then the resubmission penalty to
// a raw grade. Symbolic grades pass through unchanged. The result is floored
// at zero only after both adjustments.
func AdjustedGrade(raw model.Grade, rule *Rule, total float64, ts time.Time, count int, cfg Settings) (Adjustment, error) {
	adj := Adjustment{Raw: raw, Final: raw}
	if rule != nil {
		adj.Rule = rule.Raw
		late, err := rule.Adjust(raw, total, ts, cfg.Precision)
		if err != nil {
			return Adjustment{}, err
		}
		adj.Late = late
	}
	adj.Resubmission = ResubmissionAdjustment(count, cfg.ResubmissionPenalty, cfg.Precision)

	if !raw.IsNumeric() {
		return adj, nil
	}
	final := model.Round(raw.Value+adj.Late+adj.Resubmission, cfg.Precision)
	adj.Final = model.Numeric(math.Max(final, 0))
	return adj, nil
}
