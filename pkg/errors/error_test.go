package errors_test

import (
	"errors"
	"fmt"
	"testing"

	. "autograde/pkg/errors"
)

func TestErrorCode_Message(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{Success, "Success"},
		{AssignmentNotFound, "No such assignment"},
		{InvalidLatePolicy, "Late policy could not be parsed"},
		{ErrorCode(99999), "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.code.Message(); got != tt.want {
				t.Errorf("Message() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorCode_Ranges(t *testing.T) {
	if !DuplicateAssignment.IsConfiguration() {
		t.Error("DuplicateAssignment should be a configuration error")
	}
	if DuplicateAssignment.IsProcess() {
		t.Error("DuplicateAssignment should not be a process error")
	}
	if !GraderCrash.IsProcess() {
		t.Error("GraderCrash should be a process error")
	}
	if InvalidLatePolicy.IsConfiguration() || InvalidLatePolicy.IsProcess() {
		t.Error("InvalidLatePolicy should be in its own range")
	}
}

func TestErrorCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code       ErrorCode
		wantStatus int
	}{
		{Success, 200},
		{InvalidParams, 400},
		{BadSubmissionFilename, 400},
		{NotFound, 404},
		{NoGraderResults, 404},
		{InternalServerError, 500},
		{GraderError, 500},
	}

	for _, tt := range tests {
		t.Run(tt.code.Message(), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.wantStatus {
				t.Errorf("HTTPStatus() = %v, want %v", got, tt.wantStatus)
			}
		})
	}
}

func TestNewf(t *testing.T) {
	err := Newf(AssignmentNotFound, "assignment %s not found", "A01")

	want := "assignment A01 not found"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
	if err.Stack == "" {
		t.Error("expected stack to be captured")
	}
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("permission denied")
	wrappedErr := Wrap(originalErr, WorkspaceUnprepared)

	if wrappedErr.Code != WorkspaceUnprepared {
		t.Errorf("Code = %v, want %v", wrappedErr.Code, WorkspaceUnprepared)
	}
	if wrappedErr.Unwrap() != originalErr {
		t.Error("Unwrap() should return original error")
	}
	if Wrap(nil, GraderError) != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{name: "nil error", err: nil, want: Success},
		{name: "custom error", err: New(GraderError), want: GraderError},
		{name: "fmt wrapped custom error", err: fmt.Errorf("step: %w", New(GraderCrash)), want: GraderCrash},
		{name: "standard error", err: errors.New("standard error"), want: InternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.want {
				t.Errorf("GetCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIs(t *testing.T) {
	err := New(DuplicateLatePolicy)

	if !Is(err, DuplicateLatePolicy) {
		t.Error("Is() should return true for matching code")
	}
	if Is(err, InvalidLatePolicy) {
		t.Error("Is() should return false for non-matching code")
	}
	if Is(nil, DuplicateLatePolicy) {
		t.Error("Is() should return false for nil error")
	}
}

func TestCommonErrorConstructors(t *testing.T) {
	t.Run("ConfigError", func(t *testing.T) {
		err := ConfigError(UndefinedSubmissionType, "cpp")
		if err.Code != UndefinedSubmissionType {
			t.Error("ConfigError should keep the given code")
		}
		if err.Details["item"] != "cpp" {
			t.Error("item detail not set")
		}
	})

	t.Run("PolicyError", func(t *testing.T) {
		err := PolicyError("5x:-1", "unparsable")
		if err.Code != InvalidLatePolicy {
			t.Error("PolicyError should use InvalidLatePolicy code")
		}
		if err.Details["policy"] != "5x:-1" {
			t.Error("policy detail not set")
		}
	})

	t.Run("ValidationError", func(t *testing.T) {
		err := ValidationError("filename", "required")
		if err.Code != ValidationFailed {
			t.Error("ValidationError should use ValidationFailed code")
		}
		if err.Details["field"] != "filename" {
			t.Error("Field detail not set")
		}
	})
}
