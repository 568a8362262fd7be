package controller

import (
	"context"

	"autograde/internal/grading/service"
	"autograde/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// Reporter is the read side the controller serves.
type Reporter interface {
	Status(ctx context.Context) (service.Status, error)
	Queue(ctx context.Context, only string) ([]string, error)
	Submission(ctx context.Context, filename string) (service.SubmissionReport, error)
}

// GradingController handles pipeline status requests.
type GradingController struct {
	reports Reporter
}

// NewGradingController creates a new controller.
func NewGradingController(reports Reporter) *GradingController {
	return &GradingController{reports: reports}
}

// RegisterRoutes mounts the grading routes on r.
func (h *GradingController) RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api/v1/grading")
	api.GET("/status", h.GetStatus)
	api.GET("/queue", h.ListQueue)
	api.GET("/submissions/:filename", h.GetSubmission)
}

// GetStatus returns the lock state and queue length.
func (h *GradingController) GetStatus(c *gin.Context) {
	status, err := h.reports.Status(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, status)
}

// ListQueue returns queued filenames in grading order.
func (h *GradingController) ListQueue(c *gin.Context) {
	names, err := h.reports.Queue(c.Request.Context(), c.Query("only"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithList(c, names, len(names))
}

// GetSubmission returns the adjusted grade report for one graded file.
func (h *GradingController) GetSubmission(c *gin.Context) {
	filename := c.Param("filename")
	if filename == "" {
		response.BadRequest(c, "Invalid submission filename")
		return
	}
	report, err := h.reports.Submission(c.Request.Context(), filename)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, report)
}
