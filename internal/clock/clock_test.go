package clock

import (
	"testing"
	"time"
)

func TestFakeFiresInDeadlineOrder(t *testing.T) {
	start := time.Unix(0, 0)
	f := NewFake(start)
	var order []string
	var at []time.Duration
	record := func(name string) func() {
		return func() {
			order = append(order, name)
			at = append(at, f.Now().Sub(start))
		}
	}
	f.AfterFunc(3*time.Second, record("c"))
	f.AfterFunc(time.Second, record("a"))
	stopped := f.AfterFunc(2*time.Second, record("x"))
	f.AfterFunc(time.Second, record("b"))
	if !stopped.Stop() || stopped.Stop() {
		t.Fatalf("Stop must report pending exactly once")
	}

	f.Advance(2 * time.Second)
	if len(order) != 2 || order[0] != "a" || order[1] != "b" || at[0] != time.Second {
		t.Fatalf("unexpected firing %v at %v", order, at)
	}
	if f.Now().Sub(start) != 2*time.Second || f.Pending() != 1 {
		t.Fatalf("clock at %v with %d pending", f.Now().Sub(start), f.Pending())
	}
	f.Advance(time.Second)
	if len(order) != 3 || at[2] != 3*time.Second {
		t.Fatalf("unexpected firing %v at %v", order, at)
	}
}

func TestFakeCallbackMayReschedule(t *testing.T) {
	f := NewFake(time.Unix(0, 0))
	n := 0
	var tick func()
	tick = func() {
		n++
		if n < 3 {
			f.AfterFunc(time.Second, tick)
		}
	}
	f.AfterFunc(time.Second, tick)
	f.Advance(10 * time.Second)
	if n != 3 {
		t.Fatalf("expected 3 ticks, got %d", n)
	}
}

func TestRealAfterFunc(t *testing.T) {
	done := make(chan struct{})
	Real{}.AfterFunc(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("real timer did not fire")
	}
}
