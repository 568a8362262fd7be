package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"autograde/internal/common/http/middleware"
	"autograde/internal/grading/lock"
	"autograde/internal/grading/model"
	"autograde/internal/grading/service"
	appErr "autograde/pkg/errors"

	"github.com/gin-gonic/gin"
)

type fakeReporter struct {
	status  service.Status
	queue   []string
	only    string
	reports map[string]service.SubmissionReport
	err     error
}

func (f *fakeReporter) Status(ctx context.Context) (service.Status, error) {
	return f.status, f.err
}

func (f *fakeReporter) Queue(ctx context.Context, only string) ([]string, error) {
	f.only = only
	return f.queue, f.err
}

func (f *fakeReporter) Submission(ctx context.Context, filename string) (service.SubmissionReport, error) {
	if f.err != nil {
		return service.SubmissionReport{}, f.err
	}
	r, ok := f.reports[filename]
	if !ok {
		return service.SubmissionReport{}, appErr.New(appErr.SubmissionNotFound)
	}
	return r, nil
}

type envelope struct {
	Code    appErr.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Data    json.RawMessage  `json:"data"`
	TraceID string           `json:"trace_id"`
}

func newRouter(r Reporter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.TraceContextMiddleware())
	NewGradingController(r).RegisterRoutes(router)
	return router
}

func do(t *testing.T, router *gin.Engine, path string) (int, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %s: %v (%s)", path, err, w.Body.String())
	}
	return w.Code, env
}

func TestGradingController_GetStatus(t *testing.T) {
	fake := &fakeReporter{status: service.Status{
		Lock:        lock.State{Active: true, PID: 42, Alive: true},
		QueueLength: 3,
	}}
	code, env := do(t, newRouter(fake), "/api/v1/grading/status")
	if code != http.StatusOK || env.Code != appErr.Success {
		t.Fatalf("status = %d, code = %d", code, env.Code)
	}
	if env.TraceID == "" {
		t.Error("trace id missing from envelope")
	}
	var got service.Status
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatal(err)
	}
	if !got.Lock.Active || got.Lock.PID != 42 || got.QueueLength != 3 {
		t.Errorf("status = %+v", got)
	}
}

func TestGradingController_ListQueue(t *testing.T) {
	fake := &fakeReporter{queue: []string{"JohnA01-20140101-1000.java"}}
	code, env := do(t, newRouter(fake), "/api/v1/grading/queue?only=A01")
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if fake.only != "A01" {
		t.Errorf("only = %q, want A01", fake.only)
	}
	var list struct {
		Items []string `json:"items"`
		Total int      `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 1 || list.Items[0] != "JohnA01-20140101-1000.java" {
		t.Errorf("list = %+v", list)
	}
}

func TestGradingController_GetSubmission(t *testing.T) {
	fake := &fakeReporter{reports: map[string]service.SubmissionReport{
		"JohnA01-20140101-1000.java": {
			Filename: "JohnA01-20140101-1000.java",
			Grade:    model.Numeric(4.5),
		},
	}}
	router := newRouter(fake)

	tests := []struct {
		name     string
		path     string
		wantHTTP int
		wantCode appErr.ErrorCode
	}{
		{"found", "/api/v1/grading/submissions/JohnA01-20140101-1000.java", http.StatusOK, appErr.Success},
		{"missing", "/api/v1/grading/submissions/JaneA01-20140101-1000.java", http.StatusNotFound, appErr.SubmissionNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := do(t, router, tt.path)
			if code != tt.wantHTTP || env.Code != tt.wantCode {
				t.Fatalf("got %d/%d, want %d/%d", code, env.Code, tt.wantHTTP, tt.wantCode)
			}
		})
	}

	_, env := do(t, router, "/api/v1/grading/submissions/JohnA01-20140101-1000.java")
	var report service.SubmissionReport
	if err := json.Unmarshal(env.Data, &report); err != nil {
		t.Fatal(err)
	}
	if report.Grade != model.Numeric(4.5) {
		t.Errorf("grade = %v", report.Grade)
	}
}

func TestGradingController_ServiceError(t *testing.T) {
	fake := &fakeReporter{err: appErr.New(appErr.CacheError)}
	code, env := do(t, newRouter(fake), "/api/v1/grading/status")
	if code != http.StatusInternalServerError || env.Code != appErr.CacheError {
		t.Errorf("got %d/%d", code, env.Code)
	}
}
