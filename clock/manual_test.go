package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func TestManualFiresInDeadlineOrder(t *testing.T) {
	c := NewManual(epoch)
	var order []string
	c.AfterFunc(2*time.Minute, func() { order = append(order, "b") })
	c.AfterFunc(time.Minute, func() { order = append(order, "a") })
	c.AfterFunc(10*time.Minute, func() { order = append(order, "c") })

	if fired := c.Advance(5 * time.Minute); fired != 2 {
		t.Fatalf("expected 2 timers fired, got %d", fired)
	}
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("unexpected order %v", order)
	}
	if c.Pending() != 1 {
		t.Fatalf("expected 1 pending timer, got %d", c.Pending())
	}
	deadline, ok := c.NextDeadline()
	if !ok || !deadline.Equal(epoch.Add(10*time.Minute)) {
		t.Fatalf("unexpected next deadline %v (%v)", deadline, ok)
	}
}

func TestManualStopPreventsFire(t *testing.T) {
	c := NewManual(epoch)
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })
	if !timer.Stop() {
		t.Fatal("expected Stop to report a cancelled timer")
	}
	if timer.Stop() {
		t.Fatal("second Stop must report false")
	}
	c.Advance(time.Minute)
	if fired {
		t.Fatal("stopped timer fired")
	}
}

func TestManualNegativeDelayFiresOnZeroAdvance(t *testing.T) {
	c := NewManual(epoch)
	fired := 0
	c.AfterFunc(-time.Minute, func() { fired++ })
	if deadline, _ := c.NextDeadline(); !deadline.Equal(epoch) {
		t.Fatalf("negative delay must clamp to now, got %v", deadline)
	}
	c.Advance(0)
	if fired != 1 {
		t.Fatalf("expected timer to fire once, got %d", fired)
	}
}

func TestManualTimerArmedByCallbackFiresInWindow(t *testing.T) {
	c := NewManual(epoch)
	count := 0
	c.AfterFunc(time.Second, func() {
		count++
		c.AfterFunc(time.Second, func() { count++ })
	})
	c.Advance(5 * time.Second)
	if count != 2 {
		t.Fatalf("expected chained timer to fire, got %d", count)
	}
}

func TestManualCallbackSeesOwnDeadline(t *testing.T) {
	c := NewManual(epoch)
	var seen []time.Time
	chained := 0
	c.AfterFunc(time.Minute, func() {
		seen = append(seen, c.Now())
		c.AfterFunc(time.Minute, func() {
			seen = append(seen, c.Now())
			chained++
		})
	})

	if n := c.Advance(3 * time.Minute); n != 2 {
		t.Fatalf("expected 2 timers fired, got %d", n)
	}
	if chained != 1 {
		t.Fatalf("expected chained timer to fire once, got %d", chained)
	}
	if !seen[0].Equal(epoch.Add(time.Minute)) || !seen[1].Equal(epoch.Add(2*time.Minute)) {
		t.Fatalf("callbacks saw %v, want +1m and +2m", seen)
	}
	if !c.Now().Equal(epoch.Add(3 * time.Minute)) {
		t.Fatalf("expected clock at +3m after advance, got %v", c.Now())
	}
}

func TestManualRunTasksDrainsQueue(t *testing.T) {
	c := NewManual(epoch)
	ran := 0
	c.Go(func() {
		ran++
		c.Go(func() { ran++ })
	})
	if c.QueuedTasks() != 1 {
		t.Fatalf("expected 1 queued task, got %d", c.QueuedTasks())
	}
	if n := c.RunTasks(); n != 2 {
		t.Fatalf("expected 2 tasks run, got %d", n)
	}
	if ran != 2 {
		t.Fatalf("expected ran=2, got %d", ran)
	}
}

func TestRealAfterFuncStops(t *testing.T) {
	timer := Real{}.AfterFunc(time.Hour, func() {})
	if !timer.Stop() {
		t.Fatal("expected real timer to stop")
	}
}
