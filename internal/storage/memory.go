package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"duely/internal/task"
)

// Memory keeps tasks in process. Nothing survives a restart.
type Memory struct {
	mu    sync.RWMutex
	tasks map[task.ID]task.Task
	order []task.ID
	seq   int64
}

func NewMemory() *Memory {
	return &Memory{tasks: map[task.ID]task.Task{}}
}

func (m *Memory) FetchAll(_ context.Context) ([]task.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]task.Task, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.tasks[id])
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Due.Equal(out[j].Due) {
			return out[i].Due.Before(out[j].Due)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

func (m *Memory) Insert(_ context.Context, t task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[t.ID]; ok {
		return fmt.Errorf("duplicate task id %s", t.ID)
	}
	m.seq++
	t.Seq = m.seq
	m.tasks[t.ID] = t
	m.order = append(m.order, t.ID)
	return nil
}

func (m *Memory) Update(_ context.Context, t task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	old, ok := m.tasks[t.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoRows, t.ID)
	}
	t.Seq = old.Seq
	m.tasks[t.ID] = t
	return nil
}

func (m *Memory) Delete(_ context.Context, id task.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNoRows, id)
	}
	delete(m.tasks, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) Close() error { return nil }
