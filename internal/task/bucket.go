package task

import "time"

type Label string

const (
	Overdue  Label = "Overdue"
	Today    Label = "Today"
	Tomorrow Label = "Tomorrow"
	Upcoming Label = "Upcoming"
)

// Labels lists the buckets in display order.
var Labels = []Label{Overdue, Today, Tomorrow, Upcoming}

type Group struct {
	Label Label
	Tasks []Task
}

// Classify returns the bucket for a due time relative to now. Calendar days
// are taken in now's location.
func Classify(due, now time.Time) Label {
	today := StartOfDay(now)
	tomorrow := today.AddDate(0, 0, 1)
	day := StartOfDay(due.In(now.Location()))
	switch {
	case day.Before(today):
		return Overdue
	case day.Equal(today):
		return Today
	case day.Equal(tomorrow):
		return Tomorrow
	default:
		return Upcoming
	}
}

// Bucket partitions tasks by due day. Input order is kept inside each group
// and empty groups are left out.
func Bucket(tasks []Task, now time.Time) []Group {
	byLabel := make(map[Label][]Task, len(Labels))
	for _, t := range tasks {
		l := Classify(t.Due, now)
		byLabel[l] = append(byLabel[l], t)
	}
	groups := make([]Group, 0, len(Labels))
	for _, l := range Labels {
		if len(byLabel[l]) == 0 {
			continue
		}
		groups = append(groups, Group{Label: l, Tasks: byLabel[l]})
	}
	return groups
}
