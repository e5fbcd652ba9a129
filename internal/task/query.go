package task

import (
	"strings"
	"time"
)

// Search keeps tasks whose title or details contain query, ignoring case.
// A blank query matches everything.
func Search(tasks []Task, query string) []Task {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return tasks
	}
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Title), q) || strings.Contains(strings.ToLower(t.Details), q) {
			out = append(out, t)
		}
	}
	return out
}

type Summary struct {
	Total     int `yaml:"total"`
	Completed int `yaml:"completed"`
	Pending   int `yaml:"pending"`
	DueToday  int `yaml:"due_today"`
	Upcoming  int `yaml:"upcoming"`
	Overdue   int `yaml:"overdue"`
}

func Summarize(tasks []Task, now time.Time) Summary {
	var s Summary
	s.Total = len(tasks)
	for _, t := range tasks {
		if t.Completed {
			s.Completed++
		} else {
			s.Pending++
		}
		switch Classify(t.Due, now) {
		case Today:
			s.DueToday++
		case Tomorrow, Upcoming:
			s.Upcoming++
		case Overdue:
			if !t.Completed {
				s.Overdue++
			}
		}
	}
	return s
}
