package clock

import (
	"sort"
	"sync"
	"time"
)

// Manual is a deterministic [Clock] for tests. Timers fire and queued work runs only
// from [Manual.Advance] and [Manual.RunTasks], on the caller's goroutine.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers []*manualTimer
	tasks  []func()
}

type manualTimer struct {
	owner    *Manual
	seq      uint64
	deadline time.Time
	fn       func()
}

// NewManual returns a Manual clock starting at now.
func NewManual(now time.Time) *Manual {
	return &Manual{now: now}
}

// Now returns the virtual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AfterFunc arms a virtual timer at Now()+d.
func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	if d < 0 {
		d = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{owner: m, seq: m.seq, deadline: m.now.Add(d), fn: f}
	m.timers = append(m.timers, t)
	return t
}

// Go queues f until the next RunTasks call.
func (m *Manual) Go(f func()) {
	m.mu.Lock()
	m.tasks = append(m.tasks, f)
	m.mu.Unlock()
}

func (t *manualTimer) Stop() bool {
	m := t.owner
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, pending := range m.timers {
		if pending == t {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return true
		}
	}
	return false
}

// Advance moves the virtual time forward by d and fires every timer whose deadline is
// not after the new time, earliest first. Each callback observes its own deadline as
// Now, so timers armed by a callback with a deadline inside the window fire in the same
// call. It returns the number of timers fired.
func (m *Manual) Advance(d time.Duration) int {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	fired := 0
	for {
		m.mu.Lock()
		t := m.popDueLocked(target)
		if t == nil {
			if m.now.Before(target) {
				m.now = target
			}
			m.mu.Unlock()
			return fired
		}
		if t.deadline.After(m.now) {
			m.now = t.deadline
		}
		m.mu.Unlock()
		fired++
		t.fn()
	}
}

func (m *Manual) popDueLocked(until time.Time) *manualTimer {
	if len(m.timers) == 0 {
		return nil
	}
	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].deadline.Equal(m.timers[j].deadline) {
			return m.timers[i].seq < m.timers[j].seq
		}
		return m.timers[i].deadline.Before(m.timers[j].deadline)
	})
	next := m.timers[0]
	if next.deadline.After(until) {
		return nil
	}
	m.timers = m.timers[1:]
	return next
}

// RunTasks runs queued Go work, including work queued while running, and returns the
// number of tasks executed.
func (m *Manual) RunTasks() int {
	ran := 0
	for {
		m.mu.Lock()
		if len(m.tasks) == 0 {
			m.mu.Unlock()
			return ran
		}
		f := m.tasks[0]
		m.tasks = m.tasks[1:]
		m.mu.Unlock()
		ran++
		f()
	}
}

// Pending returns the number of armed timers.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// QueuedTasks returns the number of Go calls waiting for RunTasks.
func (m *Manual) QueuedTasks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// NextDeadline returns the earliest armed deadline.
func (m *Manual) NextDeadline() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out time.Time
	found := false
	for _, t := range m.timers {
		if !found || t.deadline.Before(out) {
			out = t.deadline
			found = true
		}
	}
	return out, found
}
