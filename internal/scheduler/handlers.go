package scheduler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handlers exposes task state over HTTP. The scheduler is looked up per
// request since it is created after the routes are registered.
type Handlers struct {
	scheduler func() *Scheduler
}

// NewHandlers creates scheduler handlers. get may return nil until the
// scheduler is running.
func NewHandlers(get func() *Scheduler) *Handlers {
	return &Handlers{scheduler: get}
}

// RegisterRoutes registers task routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.ListTasks)
	g.GET("/:id", h.GetTask)
	g.POST("/:id/run", h.RunTask)
}

func (h *Handlers) get() (*Scheduler, error) {
	if s := h.scheduler(); s != nil {
		return s, nil
	}
	return nil, echo.NewHTTPError(http.StatusServiceUnavailable, "scheduler not running")
}

func taskError(err error) error {
	switch {
	case errors.Is(err, ErrTaskNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrTaskRunning):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return err
	}
}

// ListTasks returns every task.
// GET /api/v1/scheduler/tasks
func (h *Handlers) ListTasks(c echo.Context) error {
	s, err := h.get()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.ListTasks())
}

// GET /api/v1/scheduler/tasks/:id
func (h *Handlers) GetTask(c echo.Context) error {
	s, err := h.get()
	if err != nil {
		return err
	}
	task, err := s.GetTask(c.Param("id"))
	if err != nil {
		return taskError(err)
	}
	return c.JSON(http.StatusOK, task)
}

// RunTask starts a task outside its schedule.
// POST /api/v1/scheduler/tasks/:id/run
func (h *Handlers) RunTask(c echo.Context) error {
	s, err := h.get()
	if err != nil {
		return err
	}
	taskID := c.Param("id")
	if err := s.RunNow(taskID); err != nil {
		return taskError(err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"taskId": taskID})
}
