package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appctx "github.com/jsamuelsen/synaptik/internal/app/context"
)

// RequestScope attaches a request context to reads so every view computed
// for one request sees the same task snapshot. Writes are left alone; they
// must observe their own changes.
func RequestScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.Next()
			return
		}

		c.Request = c.Request.WithContext(appctx.Scoped(c.Request.Context()))

		c.Next()
	}
}
