package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func filterFixture() []*Task {
	return []*Task{
		newTestTask("a", withStatus(StatusPending), withPriority(PriorityHigh), withProject("Apollo"), withDue(day(-2)),
			func(t *Task) { t.Assignee = "ana"; t.Tags = []string{"backend"} }),
		newTestTask("b", withStatus(StatusInProgress), withPriority(PriorityLow), withProject("apollo"), withDue(day(1)),
			func(t *Task) { t.Assignee = "Ben"; t.Title = "Fix login page" }),
		newTestTask("c", withStatus(StatusCompleted), withPriority(PriorityUrgent), withProject("Zeus"),
			func(t *Task) { t.Description = "Deploy the LOGIN service" }),
		newTestTask("d", withStatus(StatusBlocked), withPriority(PriorityMedium),
			func(t *Task) { t.Tags = []string{"frontend", "login-flow"} }),
	}
}

func ids(tasks []*Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}

	return out
}

func TestTaskFilter_Apply(t *testing.T) {
	tasks := filterFixture()

	tests := []struct {
		name   string
		filter TaskFilter
		want   []string
	}{
		{"empty filter matches all", TaskFilter{}, []string{"a", "b", "c", "d"}},
		{"single status", TaskFilter{Statuses: []Status{StatusPending}}, []string{"a"}},
		{"statuses are OR'ed", TaskFilter{Statuses: []Status{StatusPending, StatusBlocked}}, []string{"a", "d"}},
		{"priority", TaskFilter{Priorities: []Priority{PriorityUrgent, PriorityLow}}, []string{"b", "c"}},
		{"fields are AND'ed", TaskFilter{Statuses: []Status{StatusPending, StatusInProgress}, Priorities: []Priority{PriorityLow}}, []string{"b"}},
		{"assignee case-insensitive", TaskFilter{Assignee: "ben"}, []string{"b"}},
		{"project case-insensitive", TaskFilter{Project: "APOLLO"}, []string{"a", "b"}},
		{"tag", TaskFilter{Tag: "Frontend"}, []string{"d"}},
		{"due from excludes undated", TaskFilter{DueFrom: day(0)}, []string{"b"}},
		{"due to", TaskFilter{DueTo: day(0)}, []string{"a"}},
		{"due before is exclusive", TaskFilter{DueBefore: day(1)}, []string{"a"}},
		{"overdue only", TaskFilter{OverdueOnly: true}, []string{"a"}},
		{"query hits title, description and tags", TaskFilter{Query: "login"}, []string{"b", "c", "d"}},
		{"query terms are AND'ed", TaskFilter{Query: "login page"}, []string{"b"}},
		{"no match", TaskFilter{Query: "nothing-like-this"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(tt.filter.Apply(tasks, testNow)))
		})
	}
}

func TestTaskFilter_IsEmpty(t *testing.T) {
	assert.True(t, (&TaskFilter{Query: "  "}).IsEmpty())
	assert.False(t, (&TaskFilter{OverdueOnly: true}).IsEmpty())
}

func TestCountByStatus_IncludesZeroes(t *testing.T) {
	counts := CountByStatus([]*Task{newTestTask("a"), newTestTask("b")})

	assert.Len(t, counts, len(Statuses))
	assert.Equal(t, 2, counts[StatusPending])
	assert.Equal(t, 0, counts[StatusCompleted])
	assert.Equal(t, 2, counts.Total())
}

func TestFilterTasks_CountsOverUnfilteredSet(t *testing.T) {
	tasks := filterFixture()

	res := FilterTasks(tasks, &TaskFilter{Statuses: []Status{StatusPending}}, testNow)

	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, []string{"a"}, ids(res.Tasks))
	assert.Equal(t, 1, res.ByStatus[StatusInProgress])
	assert.Equal(t, 1, res.ByPriority[PriorityUrgent])
	assert.Equal(t, res.Total, res.ByStatus.Total())
}
