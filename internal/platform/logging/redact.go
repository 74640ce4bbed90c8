package logging

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/m-mizutani/masq"
)

// Value shapes that are secrets whatever key they are logged under.
var (
	jwtPattern    = regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`)
	bearerPattern = regexp.MustCompile(`(?i)^(bearer|basic)\s+\S+`)
)

// RedactOptions lists what masq hides: auth headers and tokens, the JWT
// signing secret and the Redis password from config, and any field starting
// with "secret" or "private".
func RedactOptions() []masq.Option {
	opts := []masq.Option{
		masq.WithFieldPrefix("secret"),
		masq.WithFieldPrefix("private"),
		masq.WithRegex(jwtPattern),
		masq.WithRegex(bearerPattern),
	}

	for _, name := range []string{
		"password", "Password",
		"token", "access_token", "refresh_token",
		"authorization", "Authorization",
		"cookie", "Cookie",
		"jwt_secret", "JWTSecret",
		"api_key", "apiKey",
	} {
		opts = append(opts, masq.WithFieldName(name))
	}

	return opts
}

// NewReplaceAttr returns the ReplaceAttr used by every handler New builds:
// it names LevelTrace "TRACE" and redacts per RedactOptions plus extra.
func NewReplaceAttr(extra ...masq.Option) func(groups []string, a slog.Attr) slog.Attr {
	redact := masq.New(append(RedactOptions(), extra...)...)

	return func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.LevelKey && len(groups) == 0 {
			if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
				return slog.String(slog.LevelKey, "TRACE")
			}
		}

		return redact(groups, a)
	}
}

// redacting applies a ReplaceAttr to handlers that have no hook of their
// own, like the charm pretty printer.
type redacting struct {
	next    slog.Handler
	replace func([]string, slog.Attr) slog.Attr
}

func (h redacting) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h redacting) Handle(ctx context.Context, r slog.Record) error { //nolint:gocritic // slog.Handler takes the record by value
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)

	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.replace(nil, a))
		return true
	})

	return h.next.Handle(ctx, out)
}

func (h redacting) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = h.replace(nil, a)
	}

	return redacting{next: h.next.WithAttrs(clean), replace: h.replace}
}

func (h redacting) WithGroup(name string) slog.Handler {
	return redacting{next: h.next.WithGroup(name), replace: h.replace}
}
