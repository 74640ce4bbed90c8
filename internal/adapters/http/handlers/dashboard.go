package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/synaptik/internal/adapters/http/dto"
	"github.com/jsamuelsen/synaptik/internal/app"
	"github.com/jsamuelsen/synaptik/internal/domain"
	"github.com/jsamuelsen/synaptik/internal/ports"
)

// DashboardHandler serves the aggregate views: summary, Eisenhower matrix and
// urgency buckets.
type DashboardHandler struct {
	service *app.DashboardService
	clock   ports.Clock
}

// NewDashboardHandler creates a dashboard handler.
func NewDashboardHandler(service *app.DashboardService, clock ports.Clock) *DashboardHandler {
	return &DashboardHandler{service: service, clock: clockOrDefault(clock)}
}

// Summary handles GET /api/dashboard/summary.
func (h *DashboardHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewSummaryResponse(summary))
}

// Matrix handles GET /api/dashboard/matrix. The task filters narrow the
// tasks placed in quadrants.
func (h *DashboardHandler) Matrix(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}

	matrix, err := h.service.Matrix(c.Request.Context(), filter)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewMatrixResponse(matrix, h.service.UrgencyWindow(), h.clock.Now()))
}

// Buckets handles GET /api/dashboard/buckets.
func (h *DashboardHandler) Buckets(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}

	buckets, err := h.service.Buckets(c.Request.Context(), filter)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"buckets": dto.NewBucketResponses(buckets, h.clock.Now())})
}

// Overview handles GET /api/dashboard/overview.
func (h *DashboardHandler) Overview(c *gin.Context) {
	ov, err := h.service.Overview(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewOverviewResponse(ov, h.service.UrgencyWindow()))
}

// RegisterRoutes registers dashboard routes.
func (h *DashboardHandler) RegisterRoutes(rg *gin.RouterGroup) {
	dashboard := rg.Group("/dashboard")
	dashboard.GET("/summary", h.Summary)
	dashboard.GET("/matrix", h.Matrix)
	dashboard.GET("/buckets", h.Buckets)
	dashboard.GET("/overview", h.Overview)
}

// bindFilter reads the task filter query parameters. On failure the error
// response has been written.
func bindFilter(c *gin.Context) (domain.TaskFilter, bool) {
	var q dto.TaskListQuery
	if err := dto.BindQueryAndValidate(c, &q); err != nil {
		dto.HandleBindError(c, err)
		return domain.TaskFilter{}, false
	}

	filter, err := q.Filter()
	if err != nil {
		dto.HandleError(c, err)
		return domain.TaskFilter{}, false
	}

	return filter, true
}
