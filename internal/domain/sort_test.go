package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSort(t *testing.T) {
	s, err := ParseSort("", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultSort, s)

	s, err = ParseSort("Due_Date", "DESC")
	require.NoError(t, err)
	assert.Equal(t, TaskSort{Field: SortByDueDate, Descending: true}, s)

	_, err = ParseSort("size", "")
	assert.True(t, IsValidation(err))

	_, err = ParseSort("title", "sideways")
	assert.True(t, IsValidation(err))
}

func TestSortTasks(t *testing.T) {
	tests := []struct {
		name string
		sort TaskSort
		want []string
	}{
		{"due date keeps undated last", TaskSort{Field: SortByDueDate}, []string{"b", "a", "c", "d"}},
		{"due date descending keeps undated last", TaskSort{Field: SortByDueDate, Descending: true}, []string{"a", "b", "c", "d"}},
		{"priority ties break by id", TaskSort{Field: SortByPriority}, []string{"c", "a", "d", "b"}},
		{"status", TaskSort{Field: SortByStatus, Descending: true}, []string{"c", "d", "b", "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks := []*Task{
				newTestTask("d", withStatus(StatusBlocked), withPriority(PriorityHigh)),
				newTestTask("c", withStatus(StatusCompleted), withPriority(PriorityUrgent)),
				newTestTask("b", withStatus(StatusInProgress), withPriority(PriorityLow), withDue(day(-1))),
				newTestTask("a", withPriority(PriorityHigh), withDue(day(2))),
			}

			SortTasks(tasks, tt.sort)
			assert.Equal(t, tt.want, ids(tasks))
		})
	}
}

func TestCompareTasks_IsTotal(t *testing.T) {
	a := newTestTask("a", withDue(day(1)))
	b := newTestTask("b", withDue(day(1)))

	assert.Negative(t, CompareTasks(a, b, TaskSort{Field: SortByDueDate, Descending: true}))
	assert.Zero(t, CompareTasks(a, a, TaskSort{Field: SortByTitle}))
	assert.Positive(t, CompareTasks(newTestTask("z"), a, TaskSort{Field: SortByDueDate}))
}
