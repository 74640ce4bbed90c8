package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/synaptik/internal/adapters/http/dto"
	"github.com/jsamuelsen/synaptik/internal/app"
	"github.com/jsamuelsen/synaptik/internal/domain"
	"github.com/jsamuelsen/synaptik/internal/ports"
)

// TaskHandler handles task endpoints.
type TaskHandler struct {
	service *app.TaskService
	clock   ports.Clock
}

// NewTaskHandler creates a task handler. A nil clock means the system clock.
func NewTaskHandler(service *app.TaskService, clock ports.Clock) *TaskHandler {
	return &TaskHandler{service: service, clock: clockOrDefault(clock)}
}

// List handles GET /api/tasks.
//
// @Summary List tasks
// @Tags tasks
// @Produce json
// @Param status query string false "Statuses, comma separated"
// @Param cursor query string false "Cursor from a previous page"
// @Success 200 {object} dto.TaskListResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	h.list(c, false)
}

// Search handles GET /api/tasks/search?q=...
func (h *TaskHandler) Search(c *gin.Context) {
	h.list(c, true)
}

func (h *TaskHandler) list(c *gin.Context, search bool) {
	var q dto.TaskListQuery
	if err := dto.BindQueryAndValidate(c, &q); err != nil {
		dto.HandleBindError(c, err)
		return
	}

	filter, err := q.Filter()
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	sort, err := q.TaskSort()
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	var result *domain.FilterResult
	if search {
		result, err = h.service.Search(c.Request.Context(), q.Query, filter, sort)
	} else {
		result, err = h.service.List(c.Request.Context(), filter, sort)
	}

	if err != nil {
		dto.HandleError(c, err)
		return
	}

	resp, err := dto.NewTaskListResponse(result, &q.PageQuery, sort, h.clock.Now())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Create handles POST /api/tasks.
//
// @Summary Create a task
// @Tags tasks
// @Accept json
// @Produce json
// @Success 201 {object} dto.TaskResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	var req dto.CreateTaskRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleBindError(c, err)
		return
	}

	in, err := req.ToInput()
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	task, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	setETag(c, task)
	c.Header("Location", "/api/tasks/"+task.ID)
	c.JSON(http.StatusCreated, dto.NewTaskResponse(task, h.clock.Now()))
}

// Get handles GET /api/tasks/:id.
func (h *TaskHandler) Get(c *gin.Context) {
	task, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	h.respond(c, task)
}

// Update handles PATCH /api/tasks/:id. Only the fields present are changed.
func (h *TaskHandler) Update(c *gin.Context) {
	var req dto.UpdateTaskRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleBindError(c, err)
		return
	}

	patch, err := req.ToPatch()
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	h.update(c, patch, req.Version)
}

// Replace handles PUT /api/tasks/:id. Omitted optional fields are cleared.
func (h *TaskHandler) Replace(c *gin.Context) {
	var req dto.ReplaceTaskRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleBindError(c, err)
		return
	}

	patch, err := req.ToPatch()
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	h.update(c, patch, req.Version)
}

func (h *TaskHandler) update(c *gin.Context, patch *domain.TaskPatch, bodyVersion int) {
	version, err := expectedVersion(c, bodyVersion)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	task, err := h.service.Update(c.Request.Context(), c.Param("id"), patch, version)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	h.respond(c, task)
}

// Delete handles DELETE /api/tasks/:id. With force=true the task is also
// removed from the dependency lists of its dependents.
func (h *TaskHandler) Delete(c *gin.Context) {
	force, err := queryBool(c, "force", false)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	if err := h.service.Delete(c.Request.Context(), c.Param("id"), force); err != nil {
		dto.HandleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SetStatus handles PATCH /api/tasks/:id/status.
func (h *TaskHandler) SetStatus(c *gin.Context) {
	var req dto.StatusRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleBindError(c, err)
		return
	}

	version, err := expectedVersion(c, req.Version)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	task, err := h.service.SetStatus(c.Request.Context(), c.Param("id"), domain.Status(req.Status), version)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	h.respond(c, task)
}

// BulkStatus handles POST /api/tasks/bulk/status. The update is all or
// nothing.
func (h *TaskHandler) BulkStatus(c *gin.Context) {
	var req dto.BulkStatusRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleBindError(c, err)
		return
	}

	tasks, err := h.service.BulkUpdateStatus(c.Request.Context(), req.IDs, domain.Status(req.Status))
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.BulkStatusResponse{
		Tasks:   dto.NewTaskResponses(tasks, h.clock.Now()),
		Updated: len(tasks),
	})
}

// AddDependency handles POST /api/tasks/:id/dependencies.
func (h *TaskHandler) AddDependency(c *gin.Context) {
	var req dto.DependencyRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleBindError(c, err)
		return
	}

	version, err := expectedVersion(c, req.Version)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	task, err := h.service.AddDependency(c.Request.Context(), c.Param("id"), req.DependsOn, version)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	h.respond(c, task)
}

// RemoveDependency handles DELETE /api/tasks/:id/dependencies/:dep.
func (h *TaskHandler) RemoveDependency(c *gin.Context) {
	version, err := expectedVersion(c, 0)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	task, err := h.service.RemoveDependency(c.Request.Context(), c.Param("id"), c.Param("dep"), version)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	h.respond(c, task)
}

func (h *TaskHandler) respond(c *gin.Context, task *domain.Task) {
	setETag(c, task)
	c.JSON(http.StatusOK, dto.NewTaskResponse(task, h.clock.Now()))
}

// RegisterRoutes registers task routes. write runs before every mutating
// route, typically a scope check.
func (h *TaskHandler) RegisterRoutes(rg *gin.RouterGroup, write ...gin.HandlerFunc) {
	tasks := rg.Group("/tasks")
	tasks.GET("", h.List)
	tasks.GET("/search", h.Search)
	tasks.GET("/:id", h.Get)

	w := tasks.Group("", write...)
	w.POST("", h.Create)
	w.POST("/bulk/status", h.BulkStatus)
	w.PUT("/:id", h.Replace)
	w.PATCH("/:id", h.Update)
	w.DELETE("/:id", h.Delete)
	w.PATCH("/:id/status", h.SetStatus)
	w.POST("/:id/dependencies", h.AddDependency)
	w.DELETE("/:id/dependencies/:dep", h.RemoveDependency)
}
