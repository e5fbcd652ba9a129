// Package agenda renders the bucketed task list as YAML for scripts and
// status bars.
package agenda

import (
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"duely/internal/task"
)

type Document struct {
	GeneratedAt string       `yaml:"generated_at"`
	Summary     task.Summary `yaml:"summary"`
	Buckets     []Bucket     `yaml:"buckets"`
}

type Bucket struct {
	Label string  `yaml:"label"`
	Tasks []Entry `yaml:"tasks"`
}

type Entry struct {
	ID        string `yaml:"id"`
	Title     string `yaml:"title"`
	Details   string `yaml:"details,omitempty"`
	Due       string `yaml:"due"`
	Completed bool   `yaml:"completed"`
	Reminder  bool   `yaml:"reminder"`
}

// Build groups tasks relative to now. tasks should already be due-sorted.
func Build(tasks []task.Task, now time.Time) Document {
	doc := Document{
		GeneratedAt: now.Format(time.RFC3339),
		Summary:     task.Summarize(tasks, now),
		Buckets:     []Bucket{},
	}
	for _, g := range task.Bucket(tasks, now) {
		b := Bucket{Label: string(g.Label)}
		for _, t := range g.Tasks {
			b.Tasks = append(b.Tasks, Entry{
				ID:        t.ID.String(),
				Title:     t.Title,
				Details:   t.Details,
				Due:       t.Due.In(now.Location()).Format(time.RFC3339),
				Completed: t.Completed,
				Reminder:  t.Reminder,
			})
		}
		doc.Buckets = append(doc.Buckets, b)
	}
	return doc
}

func Write(w io.Writer, tasks []task.Task, now time.Time) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Build(tasks, now)); err != nil {
		return err
	}
	return enc.Close()
}
