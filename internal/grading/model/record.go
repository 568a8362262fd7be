package model

// GradeRecord is the persisted outcome of grading one submission.
type GradeRecord struct {
	Submission    Submission `json:"submission"`
	Filename      string     `json:"filename"`
	Path          string     `json:"-"`
	Grade         Grade      `json:"grade"`
	HumanVerified bool       `json:"humanVerified"`
	HumanComment  bool       `json:"humanComment"`
}

// Flags renders the human flags suffix used in record names, e.g. "-HC".
func (r GradeRecord) Flags() string {
	flags := ""
	if r.HumanVerified {
		flags += "H"
	}
	if r.HumanComment {
		flags += "C"
	}
	if flags == "" {
		return ""
	}
	return "-" + flags
}
