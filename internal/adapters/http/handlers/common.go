package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/synaptik/internal/adapters/http/dto"
	"github.com/jsamuelsen/synaptik/internal/domain"
	"github.com/jsamuelsen/synaptik/internal/ports"
)

func clockOrDefault(c ports.Clock) ports.Clock {
	if c == nil {
		return ports.SystemClock
	}

	return c
}

// expectedVersion resolves the optimistic version for a write. If-Match wins
// over the body; zero means the caller did not ask for a version check.
func expectedVersion(c *gin.Context, bodyVersion int) (int, error) {
	v, err := dto.ParseVersion(c.GetHeader("If-Match"))
	if err != nil {
		return 0, err
	}

	if v != 0 {
		return v, nil
	}

	return bodyVersion, nil
}

// queryBool parses an optional boolean query parameter.
func queryBool(c *gin.Context, name string, def bool) (bool, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return def, nil
	}

	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, domain.NewValidationErrorWithValue(name, "must be true or false", raw)
	}

	return v, nil
}

func setETag(c *gin.Context, t *domain.Task) {
	c.Header("ETag", dto.ETag(t.Version))
}
