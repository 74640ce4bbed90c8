// Package main is synaptikctl, a command line client for the Synaptik API.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jsamuelsen/synaptik/internal/adapters/clients"
	"github.com/jsamuelsen/synaptik/internal/adapters/clients/acl"
	"github.com/jsamuelsen/synaptik/internal/platform/config"
	"github.com/jsamuelsen/synaptik/internal/platform/logging"
)

// Version is injected via ldflags.
var Version = "dev"

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// options are the persistent flags shared by every subcommand.
type options struct {
	profile  string
	url      string
	token    string
	subject  string
	scopes   []string
	asJSON   bool
	timeout  time.Duration
	logLevel string

	out io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{out: out}

	root := &cobra.Command{
		Use:           "synaptikctl",
		Short:         "Manage tasks and inspect the Synaptik dashboard",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.profile, "profile", envOr("APP_ENVIRONMENT", "local"), "Config profile used for client defaults")
	flags.StringVar(&opts.url, "url", "", "API base URL (default services.synaptik.base_url)")
	flags.StringVar(&opts.token, "token", os.Getenv("SYNAPTIK_TOKEN"), "Bearer token for jwt auth")
	flags.StringVar(&opts.subject, "as", "", "Subject sent in gateway identity headers")
	flags.StringSliceVar(&opts.scopes, "scopes", nil, "Scopes sent with --as")
	flags.BoolVarP(&opts.asJSON, "json", "j", false, "Output as JSON")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "Overall command timeout")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Client log level (trace, debug, info, warn, error)")

	root.AddCommand(
		tasksCmd(opts),
		summaryCmd(opts),
		projectsCmd(opts),
		matrixCmd(opts),
		graphCmd(opts),
		criticalPathCmd(opts),
		cyclesCmd(opts),
		pingCmd(opts),
	)

	return root
}

// client builds the API client from the config profile and the flags.
func (o *options) client() (*acl.TaskClient, error) {
	cfg, err := config.Load(o.profile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewWithWriter(&logging.Config{
		Level:   o.logLevel,
		Format:  "pretty",
		Service: "synaptikctl",
		Version: Version,
	}, os.Stderr)

	baseURL := o.url
	if baseURL == "" {
		baseURL = cfg.Services.Synaptik.BaseURL
	}

	ccfg := &clients.Config{
		BaseURL:     baseURL,
		ServiceName: cfg.Services.Synaptik.Name,
		Timeout:     cfg.Client.Timeout,
		Retry:       cfg.Client.Retry,
		Circuit:     cfg.Client.CircuitBreaker,
		Transport:   cfg.Client.Transport,
		Logger:      logger,
	}

	switch {
	case o.token != "":
		ccfg.AuthFunc = clients.BearerAuth(o.token)
	case o.subject != "":
		subjectHeader := valueOr(cfg.Auth.SubjectHeader, "X-User-ID")
		scopesHeader := valueOr(cfg.Auth.ScopesHeader, "X-User-Scopes")
		ccfg.AuthFunc = clients.GatewayAuth(subjectHeader, scopesHeader, o.subject, o.scopes...)
	}

	httpClient, err := clients.New(ccfg)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP client: %w", err)
	}

	return acl.NewTaskClient(acl.TaskClientConfig{
		Client:      httpClient,
		ServiceName: cfg.Services.Synaptik.Name,
		Logger:      logger,
	}), nil
}

// context returns the command context bounded by --timeout.
func (o *options) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if o.timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, o.timeout)
}

func pingCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the API is ready",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()

			if err := c.Check(ctx); err != nil {
				return err
			}

			fmt.Fprintln(opts.out, "ok")

			return nil
		},
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}

	return v
}
