package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jsamuelsen/synaptik/internal/adapters/clients/acl"
	"github.com/jsamuelsen/synaptik/internal/domain"
)

func tasksCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task", "t"},
		Short:   "List and change tasks",
	}

	cmd.AddCommand(
		listTasksCmd(opts),
		getTaskCmd(opts),
		createTaskCmd(opts),
		setStatusCmd(opts),
		bulkStatusCmd(opts),
		dependCmd(opts),
		undependCmd(opts),
		deleteTaskCmd(opts),
	)

	return cmd
}

func listTasksCmd(opts *options) *cobra.Command {
	var (
		statuses   []string
		priorities []string
		list       acl.ListOptions
		all        bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks matching the filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, s := range statuses {
				st, err := domain.ParseStatus(s)
				if err != nil {
					return err
				}

				list.Status = append(list.Status, st)
			}

			for _, p := range priorities {
				pr, err := domain.ParsePriority(p)
				if err != nil {
					return err
				}

				list.Priority = append(list.Priority, pr)
			}

			c, err := opts.client()
			if err != nil {
				return err
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()

			var tasks []*domain.Task

			for {
				page, err := c.ListTasks(ctx, list)
				if err != nil {
					return err
				}

				tasks = append(tasks, page.Tasks...)

				if !all || page.NextCursor == "" {
					break
				}

				list.Cursor = page.NextCursor
			}

			return writeTasks(opts.out, opts.asJSON, tasks)
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable)")
	f.StringSliceVarP(&priorities, "priority", "p", nil, "Filter by priority (repeatable)")
	f.StringVar(&list.Project, "project", "", "Filter by project")
	f.StringVar(&list.Assignee, "assignee", "", "Filter by assignee")
	f.StringVar(&list.Tag, "tag", "", "Filter by tag")
	f.StringVarP(&list.Query, "query", "q", "", "Search title and description")
	f.BoolVar(&list.Overdue, "overdue", false, "Only overdue tasks")
	f.StringVar(&list.Sort, "sort", "", "Sort field (due_date, priority, created_at, title, status)")
	f.StringVar(&list.Order, "order", "", "Sort order (asc, desc)")
	f.IntVar(&list.Limit, "limit", 0, "Page size")
	f.StringVar(&list.Cursor, "cursor", "", "Resume after this cursor")
	f.BoolVar(&all, "all", false, "Follow cursors until every page is fetched")

	return cmd
}

func getTaskCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()

			t, err := c.GetTask(ctx, args[0])
			if err != nil {
				return err
			}

			return writeTask(opts.out, opts.asJSON, t)
		},
	}
}

func createTaskCmd(opts *options) *cobra.Command {
	var (
		in       domain.TaskInput
		status   string
		priority string
		start    string
		due      string
	)

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Title = args[0]

			if status != "" {
				st, err := domain.ParseStatus(status)
				if err != nil {
					return err
				}

				in.Status = st
			}

			if priority != "" {
				pr, err := domain.ParsePriority(priority)
				if err != nil {
					return err
				}

				in.Priority = pr
			}

			var err error
			if in.StartDate, err = parseDate("start", start); err != nil {
				return err
			}

			if in.DueDate, err = parseDate("due", due); err != nil {
				return err
			}

			c, err := opts.client()
			if err != nil {
				return err
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()

			t, err := c.CreateTask(ctx, &in)
			if err != nil {
				return err
			}

			return writeTask(opts.out, opts.asJSON, t)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&in.Description, "description", "d", "", "Task description")
	f.StringVar(&status, "status", "", "Initial status (default pending)")
	f.StringVarP(&priority, "priority", "p", "", "Priority (default medium)")
	f.StringVar(&start, "start", "", "Start date (YYYY-MM-DD or RFC3339)")
	f.StringVar(&due, "due", "", "Due date (YYYY-MM-DD or RFC3339)")
	f.StringVar(&in.Assignee, "assignee", "", "Assignee")
	f.StringVar(&in.Project, "project", "", "Project name")
	f.StringSliceVar(&in.Tags, "tag", nil, "Tag (repeatable)")
	f.StringSliceVar(&in.Dependencies, "depends-on", nil, "ID of a task this one depends on (repeatable)")

	return cmd
}

func setStatusCmd(opts *options) *cobra.Command {
	var version int

	cmd := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Move a task to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := domain.ParseStatus(args[1])
			if err != nil {
				return err
			}

			c, err := opts.client()
			if err != nil {
				return err
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()

			t, err := c.SetStatus(ctx, args[0], st, version)
			if err != nil {
				return err
			}

			return writeTask(opts.out, opts.asJSON, t)
		},
	}

	cmd.Flags().IntVar(&version, "version", 0, "Expected task version; 0 skips the check")

	return cmd
}

func bulkStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "bulk-status <status> <id>...",
		Short: "Move several tasks to a status at once",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := domain.ParseStatus(args[0])
			if err != nil {
				return err
			}

			c, err := opts.client()
			if err != nil {
				return err
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()

			tasks, err := c.BulkSetStatus(ctx, args[1:], st)
			if err != nil {
				return err
			}

			return writeTasks(opts.out, opts.asJSON, tasks)
		},
	}
}

func dependCmd(opts *options) *cobra.Command {
	var version int

	cmd := &cobra.Command{
		Use:   "depend <id> <depends-on>",
		Short: "Make a task depend on another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()

			t, err := c.AddDependency(ctx, args[0], args[1], version)
			if err != nil {
				return err
			}

			return writeTask(opts.out, opts.asJSON, t)
		},
	}

	cmd.Flags().IntVar(&version, "version", 0, "Expected task version; 0 skips the check")

	return cmd
}

func undependCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "undepend <id> <depends-on>",
		Short: "Remove a dependency",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()

			t, err := c.RemoveDependency(ctx, args[0], args[1])
			if err != nil {
				return err
			}

			return writeTask(opts.out, opts.asJSON, t)
		},
	}
}

func deleteTaskCmd(opts *options) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			ctx, cancel := opts.context(cmd)
			defer cancel()

			if err := c.DeleteTask(ctx, args[0], force); err != nil {
				return err
			}

			fmt.Fprintf(opts.out, "deleted %s\n", args[0])

			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Also remove the task from its dependents")

	return cmd
}

// parseDate accepts a calendar date or an RFC3339 timestamp.
func parseDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}

	for _, layout := range []string{dateLayout, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}

	return nil, domain.NewValidationErrorWithValue(field, "must be YYYY-MM-DD or RFC3339", s)
}
