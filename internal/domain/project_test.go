package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProject(t *testing.T) {
	tasks := []*Task{
		newTestTask("a", withStatus(StatusCompleted), func(t *Task) { t.Assignee = "zoe" }),
		newTestTask("b", withStatus(StatusInProgress), withDue(day(4)), func(t *Task) { t.Assignee = "amir" }),
		newTestTask("c", withDue(day(2)), func(t *Task) { t.Assignee = "zoe" }),
		newTestTask("d", withStatus(StatusCancelled), withDue(day(1))),
	}

	p := NewProject("Apollo", tasks, testNow)

	assert.Equal(t, "Apollo", p.Name)
	assert.Equal(t, 4, p.TaskCount)
	assert.Equal(t, 33, p.Progress, "1 of 3 non-cancelled tasks")
	assert.Equal(t, []string{"amir", "zoe"}, p.Assignees)
	require.NotNil(t, p.NextDue)
	assert.Equal(t, *day(2), *p.NextDue, "cancelled task's date ignored")
	assert.Equal(t, HealthOnTrack, p.Health)
	assert.Zero(t, p.Overdue)
}

func TestNewProject_Health(t *testing.T) {
	tests := []struct {
		name  string
		tasks []*Task
		want  ProjectHealth
	}{
		{"nothing started", []*Task{newTestTask("a"), newTestTask("b")}, HealthNotStarted},
		{"all done", []*Task{newTestTask("a", withStatus(StatusCompleted)), newTestTask("b", withStatus(StatusCancelled))}, HealthCompleted},
		{"overdue", []*Task{newTestTask("a", withDue(day(-1))), newTestTask("b", withStatus(StatusInProgress))}, HealthAtRisk},
		{"blocked", []*Task{newTestTask("a", withStatus(StatusBlocked))}, HealthAtRisk},
		{"in progress", []*Task{newTestTask("a", withStatus(StatusInProgress))}, HealthOnTrack},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewProject("p", tt.tasks, testNow).Health)
		})
	}
}

func TestGroupByProject(t *testing.T) {
	tasks := []*Task{
		newTestTask("a", withProject("zeus")),
		newTestTask("b", withProject("Apollo")),
		newTestTask("c", withProject("apollo")),
		newTestTask("d"),
	}

	projects := GroupByProject(tasks, testNow, false)
	require.Len(t, projects, 2)
	assert.Equal(t, "Apollo", projects[0].Name, "first-seen spelling wins")
	assert.Equal(t, 2, projects[0].TaskCount)
	assert.Equal(t, "zeus", projects[1].Name)

	withUnassigned := GroupByProject(tasks, testNow, true)
	require.Len(t, withUnassigned, 3)
	assert.Equal(t, UnassignedProject, withUnassigned[1].Name)
	assert.Equal(t, 1, withUnassigned[1].TaskCount)
}
