package latepolicy

import (
	"sort"
	"strings"
	"time"

	"autograde/internal/grading/model"
	appErr "autograde/pkg/errors"
)

// Policies is the ordered rule set of one assignment, sorted by span end.
type Policies struct {
	Deadline time.Time
	Rules    []*Rule
}

// NewPolicies parses raws against deadline. Two rules ending at the same
// instant cover the same span and are rejected.
func NewPolicies(raws []string, deadline time.Time) (Policies, error) {
	p := Policies{Deadline: deadline}
	for _, raw := range raws {
		rule, err := Parse(raw, deadline)
		if err != nil {
			return Policies{}, err
		}
		p.Rules = append(p.Rules, rule)
	}
	sort.SliceStable(p.Rules, func(i, j int) bool {
		return p.Rules[i].End.Before(p.Rules[j].End)
	})
	for i := 1; i < len(p.Rules); i++ {
		if p.Rules[i].End.Equal(p.Rules[i-1].End) {
			return Policies{}, appErr.Newf(appErr.DuplicateLatePolicy,
				"late policies %q and %q cover the same span", p.Rules[i-1].Raw, p.Rules[i].Raw)
		}
	}
	return p, nil
}

// Empty reports whether no rules are configured.
func (p Policies) Empty() bool {
	return len(p.Rules) == 0
}

// Select returns the rule closest to the deadline that covers ts. A late
// timestamp beyond every late span clamps to the last late rule and an early
// one beyond every early span clamps to the earliest rule. Returns nil when
// only rules of the other kind exist.
func (p Policies) Select(ts time.Time) *Rule {
	if len(p.Rules) == 0 {
		return nil
	}
	if ts.After(p.Deadline) {
		last := p.Rules[len(p.Rules)-1]
		if last.IsEarly() {
			return nil
		}
		for _, r := range p.Rules {
			if !r.IsEarly() && !ts.After(r.End) {
				return r
			}
		}
		return last
	}

	first := p.Rules[0]
	if !first.IsEarly() {
		return nil
	}
	for i := len(p.Rules) - 1; i >= 0; i-- {
		r := p.Rules[i]
		if r.IsEarly() && !ts.Before(r.End) {
			return r
		}
	}
	return first
}

// LastLate returns the late rule with the furthest end, or nil.
func (p Policies) LastLate() *Rule {
	if len(p.Rules) == 0 {
		return nil
	}
	last := p.Rules[len(p.Rules)-1]
	if last.IsEarly() {
		return nil
	}
	return last
}

// IsTooLate reports whether ts is past the deadline and past every late span.
// Without late rules any late submission is too late.
func (p Policies) IsTooLate(ts time.Time) bool {
	if !ts.After(p.Deadline) {
		return false
	}
	last := p.LastLate()
	return last == nil || ts.After(last.End)
}

// Table maps assignment name prefixes to policy strings.
type Table map[string][]string

// Lookup returns the entry whose key is the longest prefix of name.
// An entry with no policies still wins and means "no late policy".
func (t Table) Lookup(name string) (string, []string, bool) {
	bestKey := ""
	found := false
	for key := range t {
		if !strings.HasPrefix(name, key) {
			continue
		}
		if !found || len(key) > len(bestKey) {
			bestKey = key
			found = true
		}
	}
	if !found {
		return "", nil, false
	}
	return bestKey, t[bestKey], true
}

// For resolves the policies that apply to an assignment.
func (t Table) For(a model.Assignment) (Policies, error) {
	_, raws, ok := t.Lookup(a.Name)
	if !ok {
		return Policies{Deadline: a.Due}, nil
	}
	p, err := NewPolicies(raws, a.Due)
	if err != nil {
		return Policies{}, appErr.Wrapf(err, appErr.GetCode(err), "assignment %s: %s", a.Name, err.Error())
	}
	return p, nil
}

// Validate checks the syntax of every configured policy.
func (t Table) Validate() error {
	for key, raws := range t {
		for _, raw := range raws {
			if err := Validate(raw); err != nil {
				return appErr.Wrapf(err, appErr.InvalidLatePolicy, "late policy for %q: %s", key, err.Error())
			}
		}
	}
	return nil
}
