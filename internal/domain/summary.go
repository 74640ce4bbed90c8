package domain

import (
	"time"
)

// Summary is the headline numbers for a set of tasks.
type Summary struct {
	Total          int
	ByStatus       StatusCounts
	ByPriority     PriorityCounts
	Overdue        int
	DueToday       int
	DueThisWeek    int
	CompletionRate float64
}

// Summarize computes a Summary in a single pass.
func Summarize(tasks []*Task, now time.Time) *Summary {
	s := &Summary{
		Total:      len(tasks),
		ByStatus:   CountByStatus(tasks),
		ByPriority: CountByPriority(tasks),
	}

	for _, t := range tasks {
		switch bucketFor(t, now) {
		case BucketOverdue:
			s.Overdue++
		case BucketToday:
			s.DueToday++
		case BucketThisWeek:
			s.DueThisWeek++
		}
	}

	s.CompletionRate = completionRate(s.ByStatus)

	return s
}

// completionRate is completed / (total - cancelled), 0 when nothing counts.
func completionRate(counts StatusCounts) float64 {
	denom := counts.Total() - counts[StatusCancelled]
	if denom <= 0 {
		return 0
	}

	return float64(counts[StatusCompleted]) / float64(denom)
}

// UrgencyBucket groups open tasks by how soon they are due.
type UrgencyBucket string

// Urgency buckets, most urgent first.
const (
	BucketOverdue   UrgencyBucket = "overdue"
	BucketToday     UrgencyBucket = "today"
	BucketThisWeek  UrgencyBucket = "this-week"
	BucketLater     UrgencyBucket = "later"
	BucketNoDueDate UrgencyBucket = "no-due-date"
)

// UrgencyBuckets lists buckets in display order.
var UrgencyBuckets = []UrgencyBucket{
	BucketOverdue,
	BucketToday,
	BucketThisWeek,
	BucketLater,
	BucketNoDueDate,
}

// BucketGroup is one bucket and its tasks.
type BucketGroup struct {
	Bucket UrgencyBucket
	Tasks  []*Task
}

// BucketByUrgency groups open tasks into UrgencyBuckets order. Completed and
// cancelled tasks are skipped. Within a bucket tasks are ordered by due date.
func BucketByUrgency(tasks []*Task, now time.Time) []BucketGroup {
	byBucket := make(map[UrgencyBucket][]*Task, len(UrgencyBuckets))
	for _, t := range tasks {
		b := bucketFor(t, now)
		if b == "" {
			continue
		}

		byBucket[b] = append(byBucket[b], t)
	}

	groups := make([]BucketGroup, 0, len(UrgencyBuckets))
	for _, b := range UrgencyBuckets {
		ts := byBucket[b]
		if ts == nil {
			ts = []*Task{}
		}

		SortTasks(ts, TaskSort{Field: SortByDueDate})
		groups = append(groups, BucketGroup{Bucket: b, Tasks: ts})
	}

	return groups
}

// bucketFor returns "" for terminal tasks.
func bucketFor(t *Task, now time.Time) UrgencyBucket {
	if !t.IsOpen() {
		return ""
	}

	if t.DueDate == nil {
		return BucketNoDueDate
	}

	today := StartOfDay(now)
	tomorrow := today.AddDate(0, 0, 1)
	weekEnd := today.AddDate(0, 0, 8)
	due := *t.DueDate

	switch {
	case due.Before(today):
		return BucketOverdue
	case due.Before(tomorrow):
		return BucketToday
	case due.Before(weekEnd):
		return BucketThisWeek
	default:
		return BucketLater
	}
}
