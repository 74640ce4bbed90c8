package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/synaptik/internal/adapters/http/dto"
)

// noRoute answers unknown paths with the error envelope instead of gin's
// plain-text 404.
func noRoute(c *gin.Context) {
	abort(c, http.StatusNotFound, dto.ErrorCodeNotFound, "no route for "+c.Request.Method+" "+c.Request.URL.Path)
}

// noMethod answers known paths hit with an unsupported method.
func noMethod(c *gin.Context) {
	abort(c, http.StatusMethodNotAllowed, dto.ErrorCodeBadRequest, "method "+c.Request.Method+" not allowed")
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, dto.NewErrorResponse(code, message).WithTraceID(dto.GetTraceID(c)))
}
