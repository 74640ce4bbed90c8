package domain

import (
	"cmp"
	"slices"
	"strings"
)

// SortField names a task ordering.
type SortField string

// Sort fields.
const (
	SortByDueDate   SortField = "due_date"
	SortByPriority  SortField = "priority"
	SortByCreatedAt SortField = "created_at"
	SortByTitle     SortField = "title"
	SortByStatus    SortField = "status"
)

// TaskSort is an ordering over tasks.
type TaskSort struct {
	Field      SortField
	Descending bool
}

// DefaultSort orders by creation time, oldest first.
var DefaultSort = TaskSort{Field: SortByCreatedAt}

// ParseSort builds a TaskSort from query values. Empty field means DefaultSort.
func ParseSort(field, order string) (TaskSort, error) {
	s := DefaultSort
	if field != "" {
		s.Field = SortField(strings.ToLower(field))
	}

	switch s.Field {
	case SortByDueDate, SortByPriority, SortByCreatedAt, SortByTitle, SortByStatus:
	default:
		return TaskSort{}, NewValidationErrorWithValue("sort", "unknown sort field", field)
	}

	switch strings.ToLower(order) {
	case "", "asc":
	case "desc":
		s.Descending = true
	default:
		return TaskSort{}, NewValidationErrorWithValue("order", "must be asc or desc", order)
	}

	return s, nil
}

// SortTasks sorts tasks in place by CompareTasks.
func SortTasks(tasks []*Task, s TaskSort) {
	slices.SortStableFunc(tasks, func(a, b *Task) int { return CompareTasks(a, b, s) })
}

// CompareTasks orders a and b under s. Ties are broken by ID so the order is
// total. Tasks without a due date sort last regardless of direction.
func CompareTasks(a, b *Task, s TaskSort) int {
	if s.Field == SortByDueDate {
		switch {
		case a.DueDate == nil && b.DueDate == nil:
			return cmp.Compare(a.ID, b.ID)
		case a.DueDate == nil:
			return 1
		case b.DueDate == nil:
			return -1
		}
	}

	c := compareBy(a, b, s.Field)
	if s.Descending {
		c = -c
	}

	if c != 0 {
		return c
	}

	return cmp.Compare(a.ID, b.ID)
}

func compareBy(a, b *Task, field SortField) int {
	switch field {
	case SortByDueDate:
		return a.DueDate.Compare(*b.DueDate)
	case SortByPriority:
		return cmp.Compare(a.Priority.Rank(), b.Priority.Rank())
	case SortByTitle:
		return cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	case SortByStatus:
		return cmp.Compare(slices.Index(Statuses, a.Status), slices.Index(Statuses, b.Status))
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}
