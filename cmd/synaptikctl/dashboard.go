package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jsamuelsen/synaptik/internal/domain"
)

func summaryCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show dashboard headline numbers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()

			s, err := c.Summary(ctx)
			if err != nil {
				return err
			}

			return writeSummary(opts.out, opts.asJSON, s)
		},
	}
}

func projectsCmd(opts *options) *cobra.Command {
	var unassigned bool

	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects with progress and health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()

			projects, err := c.Projects(ctx, unassigned)
			if err != nil {
				return err
			}

			return writeProjects(opts.out, opts.asJSON, projects)
		},
	}

	cmd.Flags().BoolVar(&unassigned, "unassigned", true, "Include tasks without a project")

	return cmd
}

func matrixCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "matrix",
		Short: "Show open tasks on the Eisenhower matrix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()

			m, err := c.Matrix(ctx)
			if err != nil {
				return err
			}

			return writeMatrix(opts.out, opts.asJSON, m)
		},
	}
}

func graphCmd(opts *options) *cobra.Command {
	var layout string

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Show the dependency graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()

			g, err := c.Graph(ctx, domain.Layout(layout))
			if err != nil {
				return err
			}

			return writeGraph(opts.out, opts.asJSON, g)
		},
	}

	cmd.Flags().StringVar(&layout, "layout", string(domain.LayoutHierarchical), "Layout: hierarchical or force")

	return cmd
}

func criticalPathCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "critical-path",
		Short: "Show the longest chain of open dependent tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()

			path, err := c.CriticalPath(ctx)
			if err != nil {
				return err
			}

			return writeTasks(opts.out, opts.asJSON, path)
		},
	}
}

func cyclesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "cycles",
		Short: "Report a dependency cycle if one exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()

			cycle, err := c.Cycle(ctx)
			if err != nil {
				return err
			}

			if opts.asJSON {
				return writeJSON(opts.out, map[string]any{"hasCycle": cycle != nil, "path": cycle})
			}

			if cycle == nil {
				fmt.Fprintln(opts.out, "no cycles")

				return nil
			}

			fmt.Fprintln(opts.out, strings.Join(cycle, " -> "))

			return nil
		},
	}
}
