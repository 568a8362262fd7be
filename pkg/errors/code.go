package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 20000-20999: Configuration errors (assignments, submission types, pipeline)
// 21000-21999: Grading process errors (workspace, graders, result storage)
// 22000-22999: Late policy errors
// 23000-23999: Pipeline lock errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200
	LockFailed ErrorCode = 10203

	// Validation errors (10300-10399)
	ValidationFailed ErrorCode = 10300
	InvalidFormat    ErrorCode = 10301

	// ========== Configuration Errors (20000-20999) ==========

	InvalidConfig           ErrorCode = 20000
	AssignmentNotFound      ErrorCode = 20001
	DuplicateAssignment     ErrorCode = 20002
	BadAssignmentDir        ErrorCode = 20003
	UndefinedSubmissionType ErrorCode = 20004
	InvalidStepConfig       ErrorCode = 20005

	// Submission naming (20100-20199)
	BadSubmissionFilename ErrorCode = 20100
	SubmissionNotFound    ErrorCode = 20101
	WrongExtension        ErrorCode = 20102
	NoGraderResults       ErrorCode = 20103
	MultipleGraderResults ErrorCode = 20104

	// ========== Grading Process Errors (21000-21999) ==========

	GradingError        ErrorCode = 21000
	WorkspaceUnprepared ErrorCode = 21001
	GraderError         ErrorCode = 21002
	GraderCrash         ErrorCode = 21003
	ResultsNotStored    ErrorCode = 21004
	InvalidGradeFormat  ErrorCode = 21005

	// ========== Late Policy Errors (22000-22999) ==========

	InvalidLatePolicy   ErrorCode = 22000
	DuplicateLatePolicy ErrorCode = 22001
	PolicyNotApplicable ErrorCode = 22002

	// ========== Pipeline Lock Errors (23000-23999) ==========

	PipelineDisabled ErrorCode = 23000
	PipelineActive   ErrorCode = 23001
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",
	CacheError:          "Cache operation failed",
	LockFailed:          "Failed to acquire lock",
	ValidationFailed:    "Validation failed",
	InvalidFormat:       "Invalid format",

	// Configuration
	InvalidConfig:           "Invalid configuration",
	AssignmentNotFound:      "No such assignment",
	DuplicateAssignment:     "More than one directory is defined for this assignment",
	BadAssignmentDir:        "Assignment directory name does not match the required format",
	UndefinedSubmissionType: "No submission type is defined for this assignment",
	InvalidStepConfig:       "A grading step is incorrectly configured",

	// Submission naming
	BadSubmissionFilename: "Filename does not match the required format",
	SubmissionNotFound:    "Submitted file could not be found",
	WrongExtension:        "File extension does not match the one required by the assignment",
	NoGraderResults:       "No grader output file found for this graded file",
	MultipleGraderResults: "Multiple grader output files found for this graded file",

	// Grading process
	GradingError:        "Something unexpected happened while grading",
	WorkspaceUnprepared: "Could not clear or copy files into the workspace",
	GraderError:         "A grading step encountered a known error",
	GraderCrash:         "A grading step crashed unexpectedly",
	ResultsNotStored:    "Could not store the submission or its grader results",
	InvalidGradeFormat:  "A grade does not match the allowed format",

	// Late policy
	InvalidLatePolicy:   "Late policy could not be parsed",
	DuplicateLatePolicy: "More than one late policy covers the same span",
	PolicyNotApplicable: "Late policy does not apply to this timestamp",

	// Pipeline lock
	PipelineDisabled: "Grading pipeline is disabled",
	PipelineActive:   "Grading pipeline is already running",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// IsConfiguration reports whether the code belongs to the configuration range.
func (c ErrorCode) IsConfiguration() bool {
	return c >= 20000 && c < 21000
}

// IsProcess reports whether the code belongs to the grading process range.
func (c ErrorCode) IsProcess() bool {
	return c >= 21000 && c < 22000
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == NotFound, c == AssignmentNotFound, c == SubmissionNotFound, c == NoGraderResults:
		return 404
	case c == ServiceUnavailable:
		return 503
	case c == InvalidParams, c == BadSubmissionFilename:
		return 400
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	default:
		return 500
	}
}
