package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"

	"github.com/jsamuelsen/synaptik/internal/platform/config"
)

const (
	jwksRefreshInterval  = time.Hour
	jwksRefreshRateLimit = 5 * time.Minute
	jwksRefreshTimeout   = 10 * time.Second

	// clockSkew is tolerated on exp and nbf.
	clockSkew = time.Minute
)

// JWTAuthenticator validates bearer tokens. Keys come from a JWKS endpoint
// (RS256) or, for local development, a shared HS256 secret.
type JWTAuthenticator struct {
	parser   *jwt.Parser
	keyfunc  jwt.Keyfunc
	jwks     *keyfunc.JWKS
	audience string
	issuer   string
	now      func() time.Time
}

// NewJWTAuthenticator builds an authenticator from cfg. With a JWKS endpoint
// the key set is fetched once here and refreshed in the background until
// Close; ctx bounds the background refresh.
func NewJWTAuthenticator(ctx context.Context, cfg *config.AuthConfig) (*JWTAuthenticator, error) {
	a := &JWTAuthenticator{
		audience: cfg.Audience,
		issuer:   cfg.Issuer,
		now:      time.Now,
	}

	if cfg.JWTSecret != "" {
		secret := []byte(cfg.JWTSecret)
		a.parser = jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}), jwt.WithoutClaimsValidation())
		a.keyfunc = func(*jwt.Token) (any, error) { return secret, nil }

		return a, nil
	}

	jwks, err := keyfunc.Get(cfg.JWKSEndpoint, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   jwksRefreshInterval,
		RefreshRateLimit:  jwksRefreshRateLimit,
		RefreshTimeout:    jwksRefreshTimeout,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("loading JWKS from %s: %w", cfg.JWKSEndpoint, err)
	}

	a.jwks = jwks
	a.parser = jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}), jwt.WithoutClaimsValidation())
	a.keyfunc = jwks.Keyfunc

	return a, nil
}

// Close stops the background JWKS refresh.
func (a *JWTAuthenticator) Close() {
	if a.jwks != nil {
		a.jwks.EndBackground()
	}
}

// Authenticate implements Authenticator for "Authorization: Bearer <jwt>".
func (a *JWTAuthenticator) Authenticate(r *http.Request) (*Claims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, ErrUnauthenticated
	}

	scheme, tokenStr, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.Count(tokenStr, ".") != 2 {
		return nil, errors.New("malformed authorization header")
	}

	token, err := a.parser.Parse(strings.TrimSpace(tokenStr), a.keyfunc)
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims")
	}

	if err := a.verify(mc); err != nil {
		return nil, err
	}

	sub, _ := mc["sub"].(string)
	if sub == "" {
		return nil, errors.New("missing sub")
	}

	return &Claims{
		Subject: sub,
		Roles:   stringList(mc["roles"]),
		Scopes:  scopes(mc),
	}, nil
}

func (a *JWTAuthenticator) verify(mc jwt.MapClaims) error {
	now := a.now()

	if !mc.VerifyExpiresAt(now.Add(-clockSkew).Unix(), true) {
		return errors.New("token expired")
	}

	if !mc.VerifyNotBefore(now.Add(clockSkew).Unix(), false) {
		return errors.New("token not valid yet")
	}

	if a.audience != "" && !mc.VerifyAudience(a.audience, true) {
		return errors.New("invalid audience")
	}

	if a.issuer != "" && !mc.VerifyIssuer(a.issuer, true) {
		return errors.New("invalid issuer")
	}

	return nil
}

// scopes reads the OAuth2 "scope" string or the "scp" list some issuers use.
func scopes(mc jwt.MapClaims) []string {
	if s, ok := mc["scope"].(string); ok {
		return strings.Fields(s)
	}

	return stringList(mc["scp"])
}

func stringList(v any) []string {
	switch vals := v.(type) {
	case []any:
		out := make([]string, 0, len(vals))
		for _, x := range vals {
			if s, ok := x.(string); ok && s != "" {
				out = append(out, s)
			}
		}

		return out
	case string:
		return splitList(vals)
	default:
		return nil
	}
}
