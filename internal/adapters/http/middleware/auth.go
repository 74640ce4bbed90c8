package middleware

import (
	"cmp"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/synaptik/internal/adapters/http/dto"
	"github.com/jsamuelsen/synaptik/internal/platform/config"
)

const claimsKey = "claims"

// ErrUnauthenticated is returned by an Authenticator that found no usable
// credentials on the request.
var ErrUnauthenticated = errors.New("unauthenticated")

// Claims identifies the caller.
type Claims struct {
	Subject string
	Roles   []string
	Scopes  []string
}

func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// HasAllScopes reports whether every listed scope was granted.
func (c *Claims) HasAllScopes(scopes ...string) bool {
	return !slices.ContainsFunc(scopes, func(s string) bool { return !c.HasScope(s) })
}

// Authenticator resolves the caller's claims from a request.
type Authenticator interface {
	Authenticate(r *http.Request) (*Claims, error)
}

// HeaderAuthenticator trusts identity headers set by a gateway that has
// already verified the caller.
type HeaderAuthenticator struct {
	subject, roles, scopes string
}

// NewHeaderAuthenticator reads the header names from cfg. Unset names fall
// back to X-User-ID, X-User-Roles and X-User-Scopes.
func NewHeaderAuthenticator(cfg *config.AuthConfig) *HeaderAuthenticator {
	if cfg == nil {
		cfg = &config.AuthConfig{}
	}

	return &HeaderAuthenticator{
		subject: cmp.Or(cfg.SubjectHeader, "X-User-ID"),
		roles:   cmp.Or(cfg.RolesHeader, "X-User-Roles"),
		scopes:  cmp.Or(cfg.ScopesHeader, "X-User-Scopes"),
	}
}

// Authenticate returns ErrUnauthenticated when the subject header is blank.
// Roles are comma separated; scopes are space separated as in OAuth2.
func (a *HeaderAuthenticator) Authenticate(r *http.Request) (*Claims, error) {
	subject := strings.TrimSpace(r.Header.Get(a.subject))
	if subject == "" {
		return nil, ErrUnauthenticated
	}

	return &Claims{
		Subject: subject,
		Roles:   splitList(r.Header.Get(a.roles)),
		Scopes:  strings.Fields(r.Header.Get(a.scopes)),
	}, nil
}

// CallerClaims returns the claims Authenticate stored, or nil.
func CallerClaims(c *gin.Context) *Claims {
	v, _ := c.Get(claimsKey)
	claims, _ := v.(*Claims)

	return claims
}

// Authenticate rejects requests auth cannot identify with 401 and stores the
// claims of the rest.
func Authenticate(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := auth.Authenticate(c.Request)
		switch {
		case errors.Is(err, ErrUnauthenticated):
			deny(c, dto.ErrorCodeUnauthorized, "authentication required")
			return
		case err != nil:
			deny(c, dto.ErrorCodeUnauthorized, "invalid credentials")
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireScopes answers 403 unless the caller holds every scope. It runs
// after Authenticate; without claims it answers 401.
func RequireScopes(scopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := CallerClaims(c)

		switch {
		case claims == nil:
			deny(c, dto.ErrorCodeUnauthorized, "authentication required")
		case !claims.HasAllScopes(scopes...):
			deny(c, dto.ErrorCodeForbidden, "insufficient permissions: scopes ["+strings.Join(scopes, ", ")+"] required")
		default:
			c.Next()
		}
	}
}

func deny(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(dto.HTTPStatusFromCode(code), dto.NewErrorResponse(code, message).WithTraceID(dto.GetTraceID(c)))
}

// splitList splits a comma separated header value, dropping blanks. It
// returns nil for an empty value.
func splitList(s string) []string {
	var out []string

	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}
