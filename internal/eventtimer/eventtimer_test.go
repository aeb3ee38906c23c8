package eventtimer

import (
	"testing"
	"time"
)

func TestFiresAfterIntervalElapses(t *testing.T) {
	tm := New()
	fired := 0
	tm.Every(10*time.Second, func(time.Time) { fired++ })

	base := time.Unix(1000, 0)
	tm.Step(base) // arms the entry, does not fire
	if fired != 0 {
		t.Fatalf("fired = %d; want 0 on arming step", fired)
	}

	tm.Step(base.Add(5 * time.Second))
	if fired != 0 {
		t.Fatalf("fired = %d; want 0 before interval elapses", fired)
	}

	tm.Step(base.Add(10 * time.Second))
	if fired != 1 {
		t.Fatalf("fired = %d; want 1 once interval elapses", fired)
	}
}

func TestFiresRepeatedlyOnEachElapsedInterval(t *testing.T) {
	tm := New()
	fired := 0
	tm.Every(time.Second, func(time.Time) { fired++ })

	base := time.Unix(2000, 0)
	tm.Step(base)
	tm.Step(base.Add(time.Second))
	tm.Step(base.Add(2 * time.Second))
	tm.Step(base.Add(3 * time.Second))

	if fired != 3 {
		t.Fatalf("fired = %d; want 3", fired)
	}
}

func TestCancelStopsFutureFires(t *testing.T) {
	tm := New()
	fired := 0
	handle := tm.Every(time.Second, func(time.Time) { fired++ })

	base := time.Unix(3000, 0)
	tm.Step(base)
	tm.Cancel(handle)
	tm.Step(base.Add(time.Second))
	tm.Step(base.Add(2 * time.Second))

	if fired != 0 {
		t.Fatalf("fired = %d; want 0 after Cancel", fired)
	}
}

func TestMultipleIndependentIntervals(t *testing.T) {
	tm := New()
	var regular, optimistic int
	tm.Every(10*time.Second, func(time.Time) { regular++ })
	tm.Every(30*time.Second, func(time.Time) { optimistic++ })

	base := time.Unix(4000, 0)
	tm.Step(base)
	for i := 1; i <= 3; i++ {
		tm.Step(base.Add(time.Duration(i) * 10 * time.Second))
	}

	if regular != 3 {
		t.Fatalf("regular fired %d times; want 3", regular)
	}
	if optimistic != 1 {
		t.Fatalf("optimistic fired %d times; want 1", optimistic)
	}
}
