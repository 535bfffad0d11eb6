package server

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/caseflow/errors"
	"github.com/kbukum/caseflow/runstore"
	"github.com/kbukum/caseflow/validation"
)

// RunService is what the run API needs from the running service.
type RunService interface {
	ListRuns(ctx context.Context, opts runstore.ListOptions) ([]runstore.Run, error)
	GetRun(ctx context.Context, id string) (*runstore.Run, error)
	Attempts(ctx context.Context, runID string) ([]runstore.TaskAttempt, error)
	// Trigger starts a manual run for a logical date.
	Trigger(ctx context.Context, date time.Time) (*runstore.Run, error)
	// Cancel stops an active run.
	Cancel(runID string) error
}

// RunDetail is a run with its task transitions.
type RunDetail struct {
	runstore.Run
	Attempts []runstore.TaskAttempt `json:"attempts"`
}

// TriggerRequest is the body of POST /runs.
type TriggerRequest struct {
	LogicalDate string `json:"logical_date" validate:"required,datetime=2006-01-02"`
}

// ListQuery is the query string of GET /runs.
type ListQuery struct {
	DAGID  string `form:"dag_id" validate:"omitempty,max=128"`
	Status string `form:"status" validate:"omitempty,oneof=pending running succeeded failed"`
	Limit  int    `form:"limit" validate:"omitempty,min=1,max=500"`
}

// RegisterRunRoutes mounts the run API under /runs.
func RegisterRunRoutes(r gin.IRouter, svc RunService) {
	h := &runHandler{svc: svc}
	g := r.Group("/runs")
	g.GET("", h.list)
	g.POST("", h.trigger)
	g.GET("/:id", h.get)
	g.DELETE("/:id", h.cancel)
}

type runHandler struct {
	svc RunService
}

func (h *runHandler) list(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		RespondWithError(c, apperrors.InvalidInput("limit", "must be a positive integer"))
		return
	}
	if err := validation.Struct(q); err != nil {
		RespondWithError(c, err)
		return
	}
	opts := runstore.ListOptions{DAGID: q.DAGID, Status: runstore.RunStatus(q.Status), Limit: q.Limit}
	runs, err := h.svc.ListRuns(c.Request.Context(), opts)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOKWithMeta(c, runs, &Meta{Total: len(runs), Limit: opts.Limit})
}

func (h *runHandler) get(c *gin.Context) {
	id := c.Param("id")
	run, err := h.svc.GetRun(c.Request.Context(), id)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	attempts, err := h.svc.Attempts(c.Request.Context(), id)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, RunDetail{Run: *run, Attempts: attempts})
}

func (h *runHandler) trigger(c *gin.Context) {
	var req TriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, apperrors.InvalidInput("body", "must be a JSON object"))
		return
	}
	if err := validation.Struct(req); err != nil {
		RespondWithError(c, err)
		return
	}
	date, err := time.Parse(runstore.DateLayout, req.LogicalDate)
	if err != nil {
		RespondWithError(c, apperrors.InvalidInput("logical_date", "must be YYYY-MM-DD"))
		return
	}
	run, err := h.svc.Trigger(c.Request.Context(), date)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondAccepted(c, run)
}

func (h *runHandler) cancel(c *gin.Context) {
	if err := h.svc.Cancel(c.Param("id")); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondNoContent(c)
}
