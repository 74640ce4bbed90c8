package clients

import (
	"net/http"
	"strings"
)

// BearerAuth returns an AuthFunc that sends token as a bearer credential.
func BearerAuth(token string) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// GatewayAuth returns an AuthFunc that sets the identity headers a trusted
// gateway would forward: the subject and its space separated scopes.
func GatewayAuth(subjectHeader, scopesHeader, subject string, scopes ...string) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set(subjectHeader, subject)

		if len(scopes) > 0 {
			req.Header.Set(scopesHeader, strings.Join(scopes, " "))
		}
	}
}
