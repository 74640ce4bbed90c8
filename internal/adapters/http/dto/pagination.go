package dto

import (
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/bytedance/sonic"

	"github.com/jsamuelsen/synaptik/internal/domain"
)

// Page sizes.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ErrInvalidCursor is returned for cursors that do not decode or were cut
// from a different ordering.
var ErrInvalidCursor = errors.New("invalid cursor")

// PageQuery holds the paging query parameters.
type PageQuery struct {
	// Cursor is the nextCursor of the previous page.
	Cursor string `form:"cursor"`
	Limit  int    `form:"limit" validate:"omitempty,gte=1,lte=100"`
}

// PageSize returns Limit, or DefaultLimit when unset.
func (q *PageQuery) PageSize() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}

	return min(q.Limit, MaxLimit)
}

// Page is one page of a listing.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
	HasMore    bool   `json:"hasMore"`
}

// pageCursor records where a page ended: the last task's ID and its value
// of the sort field, and the ordering the page was cut from. The next page
// starts at the first task ordered after that position, so it resumes
// correctly even when the last task has since left the listing.
type pageCursor struct {
	After string `json:"a"`
	Key   string `json:"k,omitempty"`
	Order string `json:"o"`
}

func orderKey(s domain.TaskSort) string {
	if s.Descending {
		return string(s.Field) + ":desc"
	}

	return string(s.Field) + ":asc"
}

// sortValue renders t's value of field for a cursor. A missing due date is
// the empty string.
func sortValue(t *domain.Task, field domain.SortField) string {
	switch field {
	case domain.SortByDueDate:
		if t.DueDate == nil {
			return ""
		}

		return t.DueDate.UTC().Format(time.RFC3339Nano)
	case domain.SortByPriority:
		return string(t.Priority)
	case domain.SortByTitle:
		return t.Title
	case domain.SortByStatus:
		return string(t.Status)
	default:
		return t.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
}

// boundary rebuilds the position a cursor names as a task that compares
// like the one the page ended on.
func (c *pageCursor) boundary(field domain.SortField) (*domain.Task, error) {
	t := &domain.Task{ID: c.After}

	switch field {
	case domain.SortByDueDate:
		if c.Key == "" {
			return t, nil
		}

		due, err := time.Parse(time.RFC3339Nano, c.Key)
		if err != nil {
			return nil, ErrInvalidCursor
		}

		t.DueDate = &due
	case domain.SortByPriority:
		t.Priority = domain.Priority(c.Key)
	case domain.SortByTitle:
		t.Title = c.Key
	case domain.SortByStatus:
		t.Status = domain.Status(c.Key)
	default:
		created, err := time.Parse(time.RFC3339Nano, c.Key)
		if err != nil {
			return nil, ErrInvalidCursor
		}

		t.CreatedAt = created
	}

	return t, nil
}

// EncodeCursor builds an opaque cursor that resumes after last.
func EncodeCursor(last *domain.Task, s domain.TaskSort) string {
	data, err := sonic.Marshal(pageCursor{After: last.ID, Key: sortValue(last, s.Field), Order: orderKey(s)})
	if err != nil {
		return ""
	}

	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor returns the position a cursor resumes after, as a task that
// orders like the one it was issued for. The cursor must have been issued
// for the same ordering.
func DecodeCursor(encoded string, s domain.TaskSort) (*domain.Task, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	var c pageCursor
	if err := sonic.Unmarshal(raw, &c); err != nil || c.After == "" {
		return nil, ErrInvalidCursor
	}

	if want := orderKey(s); c.Order != want {
		return nil, fmt.Errorf("%w: issued for sort %s, not %s", ErrInvalidCursor, c.Order, want)
	}

	return c.boundary(s.Field)
}

// PageTasks cuts the page that follows q.Cursor out of tasks, which must
// already be in s order. next is empty on the last page.
func PageTasks(tasks []*domain.Task, q *PageQuery, s domain.TaskSort) (page []*domain.Task, next string, err error) {
	if q.Cursor != "" {
		after, err := DecodeCursor(q.Cursor, s)
		if err != nil {
			return nil, "", domain.NewValidationErrorWithValue("cursor", err.Error(), q.Cursor)
		}

		i, _ := slices.BinarySearchFunc(tasks, after, func(t, target *domain.Task) int {
			if domain.CompareTasks(t, target, s) <= 0 {
				return -1
			}

			return 1
		})

		tasks = tasks[i:]
	}

	size := q.PageSize()
	if len(tasks) <= size {
		return tasks, "", nil
	}

	page = tasks[:size]

	return page, EncodeCursor(page[size-1], s), nil
}
