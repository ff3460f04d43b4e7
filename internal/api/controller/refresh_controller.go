package controller

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bassista/go_refresh/internal/logger"
	"github.com/bassista/go_refresh/internal/orchestrator"
	"github.com/bassista/go_refresh/internal/task"
)

// Refresher is the part of the orchestrator exposed over HTTP.
type Refresher interface {
	Tasks() []task.Task
	Update(ctx context.Context) error
	RunTask(ctx context.Context, name string) error
	Reload(ctx context.Context, types ...string) error
}

// RefreshController triggers cycles and reloads. Work runs on baseCtx so
// that a client disconnect does not cancel a download halfway.
type RefreshController struct {
	refresher Refresher
	baseCtx   context.Context
}

func NewRefreshController(baseCtx context.Context, refresher Refresher) *RefreshController {
	return &RefreshController{refresher: refresher, baseCtx: baseCtx}
}

type resultView struct {
	Status   string    `json:"status"`
	Message  string    `json:"message,omitempty"`
	Error    string    `json:"error,omitempty"`
	Started  time.Time `json:"started"`
	Duration string    `json:"duration"`
}

type taskView struct {
	Name          string      `json:"name"`
	Type          string      `json:"type"`
	Interval      string      `json:"interval"`
	RetryInterval string      `json:"retry_interval,omitempty"`
	RunAfter      time.Time   `json:"run_after"`
	Running       bool        `json:"running"`
	Disabled      bool        `json:"disabled"`
	AffectedTypes []string    `json:"affected_types"`
	Runs          int         `json:"runs"`
	Failures      int         `json:"failures"`
	LastResult    *resultView `json:"last_result,omitempty"`
}

func newResultView(res task.Result) resultView {
	v := resultView{
		Status:   res.Status.String(),
		Message:  res.Message,
		Started:  res.Started,
		Duration: res.Duration.String(),
	}
	if res.Err != nil {
		v.Error = res.Err.Error()
	}
	return v
}

func newTaskView(t task.Task) taskView {
	v := taskView{
		Name:          t.Name,
		Type:          t.Type,
		Interval:      t.Interval.String(),
		RunAfter:      t.RunAfter,
		Running:       t.Running,
		Disabled:      t.Disabled,
		AffectedTypes: t.AffectedTypes,
		Runs:          t.Runs,
		Failures:      t.Failures,
	}
	if v.AffectedTypes == nil {
		v.AffectedTypes = []string{}
	}
	if t.RetryInterval > 0 {
		v.RetryInterval = t.RetryInterval.String()
	}
	if t.LastResult != nil {
		rv := newResultView(*t.LastResult)
		v.LastResult = &rv
	}
	return v
}

// ListTasks returns the scheduling state of every configured task.
func (rc *RefreshController) ListTasks(c *gin.Context) {
	tasks := rc.refresher.Tasks()
	out := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, newTaskView(t))
	}
	c.JSON(http.StatusOK, out)
}

// Update runs one cycle over the due tasks.
func (rc *RefreshController) Update(c *gin.Context) {
	if err := rc.refresher.Update(rc.baseCtx); err != nil {
		rc.writeCycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "update cycle completed"})
}

// RunTask runs one task regardless of its schedule.
func (rc *RefreshController) RunTask(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing task name"})
		return
	}

	err := rc.refresher.RunTask(rc.baseCtx, name)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": "task completed", "task": name})
	case errors.Is(err, orchestrator.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, orchestrator.ErrTaskDisabled), errors.Is(err, task.ErrAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		rc.writeCycleError(c, err)
	}
}

// Reload reloads the item types listed in ?types=a,b, or all of them.
func (rc *RefreshController) Reload(c *gin.Context) {
	var types []string
	for _, raw := range c.QueryArray("types") {
		for _, typ := range strings.Split(raw, ",") {
			if typ = strings.TrimSpace(typ); typ != "" {
				types = append(types, typ)
			}
		}
	}

	if err := rc.refresher.Reload(rc.baseCtx, types...); err != nil {
		if errors.Is(err, orchestrator.ErrNotConfigured) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		logger.WithComponent("refresh_controller").Errorf("reload %v failed: %v", types, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if types == nil {
		types = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"message": "reload completed", "types": types})
}

func (rc *RefreshController) writeCycleError(c *gin.Context, err error) {
	var cycleErr *orchestrator.CycleError
	if errors.As(err, &cycleErr) {
		failures := make([]gin.H, 0, len(cycleErr.Results))
		for _, r := range cycleErr.Results {
			failures = append(failures, gin.H{"task": r.Task, "result": newResultView(r)})
		}
		c.JSON(http.StatusBadGateway, gin.H{
			"error":    "update cycle had failures",
			"cycle":    cycleErr.CycleID,
			"failures": failures,
		})
		return
	}
	logger.WithComponent("refresh_controller").Errorf("update failed: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
