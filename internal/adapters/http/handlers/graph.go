package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/synaptik/internal/adapters/http/dto"
	"github.com/jsamuelsen/synaptik/internal/app"
	"github.com/jsamuelsen/synaptik/internal/domain"
	"github.com/jsamuelsen/synaptik/internal/ports"
)

// GraphHandler serves the dependency graph views.
type GraphHandler struct {
	service *app.GraphService
	clock   ports.Clock
}

// NewGraphHandler creates a graph handler.
func NewGraphHandler(service *app.GraphService, clock ports.Clock) *GraphHandler {
	return &GraphHandler{service: service, clock: clockOrDefault(clock)}
}

// Graph handles GET /api/graph?layout=hierarchical|force plus task filters.
//
// @Summary Dependency graph
// @Tags graph
// @Produce json
// @Param layout query string false "hierarchical (default) or force"
// @Success 200 {object} dto.GraphResponse
// @Failure 403 {object} dto.ErrorResponse "force layout disabled"
// @Router /api/graph [get]
func (h *GraphHandler) Graph(c *gin.Context) {
	q, layout, ok := bindGraphQuery(c)
	if !ok {
		return
	}

	filter, err := q.Filter()
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	g, err := h.service.Graph(c.Request.Context(), filter, layout)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewGraphResponse(g, layout))
}

// Subgraph handles GET /api/graph/:id?direction=upstream|downstream&depth=N.
func (h *GraphHandler) Subgraph(c *gin.Context) {
	q, layout, ok := bindGraphQuery(c)
	if !ok {
		return
	}

	dir, err := domain.ParseDirection(q.Direction)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	g, err := h.service.Subgraph(c.Request.Context(), c.Param("id"), dir, q.Depth, layout)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewGraphResponse(g, layout))
}

// CriticalPath handles GET /api/graph/critical-path.
func (h *GraphHandler) CriticalPath(c *gin.Context) {
	path, err := h.service.CriticalPath(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.CriticalPathResponse{
		Length: len(path),
		Tasks:  dto.NewTaskResponses(path, h.clock.Now()),
	})
}

// Cycles handles GET /api/graph/cycles.
func (h *GraphHandler) Cycles(c *gin.Context) {
	path, err := h.service.Cycle(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	if path == nil {
		path = []string{}
	}

	c.JSON(http.StatusOK, dto.CycleResponse{HasCycle: len(path) > 0, Path: path})
}

// RegisterRoutes registers graph routes.
func (h *GraphHandler) RegisterRoutes(rg *gin.RouterGroup) {
	graph := rg.Group("/graph")
	graph.GET("", h.Graph)
	graph.GET("/critical-path", h.CriticalPath)
	graph.GET("/cycles", h.Cycles)
	graph.GET("/:id", h.Subgraph)
}

func bindGraphQuery(c *gin.Context) (*dto.GraphQuery, domain.Layout, bool) {
	var q dto.GraphQuery
	if err := dto.BindQueryAndValidate(c, &q); err != nil {
		dto.HandleBindError(c, err)
		return nil, "", false
	}

	layout, err := domain.ParseLayout(q.Layout)
	if err != nil {
		dto.HandleError(c, err)
		return nil, "", false
	}

	return &q, layout, true
}
