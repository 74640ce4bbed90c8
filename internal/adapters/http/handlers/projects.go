package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/synaptik/internal/adapters/http/dto"
	"github.com/jsamuelsen/synaptik/internal/app"
	"github.com/jsamuelsen/synaptik/internal/domain"
	"github.com/jsamuelsen/synaptik/internal/ports"
)

// ProjectHandler serves the project views derived from task project names.
type ProjectHandler struct {
	service *app.ProjectService
	clock   ports.Clock
}

// NewProjectHandler creates a project handler.
func NewProjectHandler(service *app.ProjectService, clock ports.Clock) *ProjectHandler {
	return &ProjectHandler{service: service, clock: clockOrDefault(clock)}
}

// List handles GET /api/projects. Tasks without a project are grouped under
// "Unassigned" unless unassigned=false.
func (h *ProjectHandler) List(c *gin.Context) {
	unassigned, err := queryBool(c, "unassigned", true)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	projects, err := h.service.List(c.Request.Context(), unassigned)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"projects": dto.NewProjectResponses(projects)})
}

// Get handles GET /api/projects/:name.
func (h *ProjectHandler) Get(c *gin.Context) {
	project, err := h.service.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewProjectResponse(project))
}

// Tasks handles GET /api/projects/:name/tasks.
func (h *ProjectHandler) Tasks(c *gin.Context) {
	sort, err := domain.ParseSort(c.Query("sort"), c.Query("order"))
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	tasks, err := h.service.Tasks(c.Request.Context(), c.Param("name"), sort)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tasks": dto.NewTaskResponses(tasks, h.clock.Now())})
}

// Rename handles PUT /api/projects/:name.
func (h *ProjectHandler) Rename(c *gin.Context) {
	var req dto.RenameProjectRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleBindError(c, err)
		return
	}

	project, err := h.service.Rename(c.Request.Context(), c.Param("name"), req.Name)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewProjectResponse(project))
}

// RegisterRoutes registers project routes. write guards the rename.
func (h *ProjectHandler) RegisterRoutes(rg *gin.RouterGroup, write ...gin.HandlerFunc) {
	projects := rg.Group("/projects")
	projects.GET("", h.List)
	projects.GET("/:name", h.Get)
	projects.GET("/:name/tasks", h.Tasks)
	projects.Group("", write...).PUT("/:name", h.Rename)
}
