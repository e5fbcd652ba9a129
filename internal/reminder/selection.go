package reminder

import (
	"sync"

	"duely/internal/task"
)

// Selection holds the id of the task whose notification the user last
// activated. Hosts either poll Get or Subscribe for changes.
type Selection struct {
	mu   sync.Mutex
	id   task.ID
	set  bool
	subs []chan task.ID
}

func NewSelection() *Selection {
	return &Selection{}
}

func (s *Selection) Set(id task.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
	s.set = true
	for _, ch := range s.subs {
		// keep only the latest value for slow readers
		select {
		case <-ch:
		default:
		}
		ch <- id
	}
}

func (s *Selection) Get() (task.ID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, s.set
}

func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = ""
	s.set = false
}

// Subscribe returns a channel receiving every id passed to Set from now on.
func (s *Selection) Subscribe() <-chan task.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan task.ID, 1)
	s.subs = append(s.subs, ch)
	return ch
}
