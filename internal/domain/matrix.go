package domain

import (
	"cmp"
	"slices"
	"time"
)

// DefaultUrgencyWindow is how close a due date must be for a task to count as urgent.
const DefaultUrgencyWindow = 48 * time.Hour

// Quadrant is a cell of the Eisenhower matrix.
type Quadrant string

// Eisenhower quadrants.
const (
	QuadrantDo        Quadrant = "do"        // urgent and important
	QuadrantSchedule  Quadrant = "schedule"  // important, not urgent
	QuadrantDelegate  Quadrant = "delegate"  // urgent, not important
	QuadrantEliminate Quadrant = "eliminate" // neither
)

// Quadrants lists the matrix cells in reading order.
var Quadrants = []Quadrant{QuadrantDo, QuadrantSchedule, QuadrantDelegate, QuadrantEliminate}

// Matrix is the Eisenhower categorisation of open tasks.
type Matrix map[Quadrant][]*Task

// IsUrgent reports whether t is urgent: urgent priority, overdue, or due within window.
func IsUrgent(t *Task, now time.Time, window time.Duration) bool {
	if t.Priority == PriorityUrgent || t.IsOverdue(now) {
		return true
	}

	return t.DueDate != nil && !t.DueDate.After(now.Add(window))
}

// Classify places a task in its quadrant.
func Classify(t *Task, now time.Time, window time.Duration) Quadrant {
	urgent := IsUrgent(t, now, window)
	important := t.Priority.Important()

	switch {
	case urgent && important:
		return QuadrantDo
	case important:
		return QuadrantSchedule
	case urgent:
		return QuadrantDelegate
	default:
		return QuadrantEliminate
	}
}

// BuildMatrix classifies every open task. Each quadrant is ordered by due date
// (undated last), then priority, then ID. Every quadrant key is present.
func BuildMatrix(tasks []*Task, now time.Time, window time.Duration) Matrix {
	if window <= 0 {
		window = DefaultUrgencyWindow
	}

	m := make(Matrix, len(Quadrants))
	for _, q := range Quadrants {
		m[q] = []*Task{}
	}

	for _, t := range tasks {
		if !t.IsOpen() {
			continue
		}

		q := Classify(t, now, window)
		m[q] = append(m[q], t)
	}

	for _, q := range Quadrants {
		slices.SortStableFunc(m[q], compareMatrixOrder)
	}

	return m
}

func compareMatrixOrder(a, b *Task) int {
	switch {
	case a.DueDate != nil && b.DueDate != nil:
		if c := a.DueDate.Compare(*b.DueDate); c != 0 {
			return c
		}
	case a.DueDate != nil:
		return -1
	case b.DueDate != nil:
		return 1
	}

	if c := cmp.Compare(a.Priority.Rank(), b.Priority.Rank()); c != 0 {
		return c
	}

	return cmp.Compare(a.ID, b.ID)
}
