package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// validatorOnce reports fields by their koanf key, so messages name what the
// operator writes in YAML or APP_ variables.
var validatorOnce = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("koanf"); name != "" && name != "-" {
			return name
		}

		return f.Name
	})

	return v
})

// Validate checks field rules and the rules spanning sections. Every problem
// is reported, one per line.
func (c *Config) Validate() error {
	var problems []string

	var fieldErrs validator.ValidationErrors
	if err := validatorOnce().Struct(c); errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			problems = append(problems, describe(fe))
		}
	} else if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	problems = append(problems, c.crossChecks()...)

	if len(problems) == 0 {
		return nil
	}

	return fmt.Errorf("%w:\n  %s", ErrInvalid, strings.Join(problems, "\n  "))
}

func (c *Config) crossChecks() []string {
	var out []string

	if c.Auth.Enabled && c.Auth.Mode == "jwt" && c.Auth.JWKSEndpoint == "" && c.Auth.JWTSecret == "" {
		out = append(out, "auth.jwks_endpoint or auth.jwt_secret is required when auth.mode is jwt")
	}

	if (c.Cache.Enabled || c.Events.Enabled) && c.Redis.Addr == "" {
		out = append(out, "redis.addr is required when cache or events are enabled")
	}

	if c.Client.Retry.MaxInterval > 0 && c.Client.Retry.MaxInterval < c.Client.Retry.InitialInterval {
		out = append(out, "client.retry.max_interval must not be below client.retry.initial_interval")
	}

	return out
}

func describe(fe validator.FieldError) string {
	key := fe.Namespace()
	if _, rest, ok := strings.Cut(key, "."); ok {
		key = rest
	}

	param := fe.Param()

	switch fe.Tag() {
	case "required":
		return key + " is required"
	case "required_if":
		cond, val, _ := strings.Cut(param, " ")
		return fmt.Sprintf("%s is required when %s is %s", key, strings.ToLower(cond), val)
	case "min":
		return key + " must be at least " + param
	case "max":
		return key + " must be at most " + param
	case "oneof":
		return key + " must be one of: " + strings.ReplaceAll(param, " ", ", ")
	case "url":
		return fmt.Sprintf("%s must be a URL, got %q", key, fe.Value())
	default:
		return fmt.Sprintf("%s fails %q", key, fe.Tag())
	}
}
