package tracker

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestConfusionWindowFiresAtThreshold(t *testing.T) {
	t.Parallel()

	w := newConfusionWindow(25*time.Second, 5)
	base := time.Now()

	for i := 0; i < 4; i++ {
		if _, fired := w.Record(base.Add(time.Duration(i) * time.Second)); fired {
			t.Fatalf("fired at action %d, want only at 5", i+1)
		}
	}
	count, fired := w.Record(base.Add(4 * time.Second))
	if !fired {
		t.Fatal("did not fire at the fifth action")
	}
	if count != 5 {
		t.Errorf("count = %d, want 5", count)
	}
}

func TestConfusionWindowDropsStaleActions(t *testing.T) {
	t.Parallel()

	w := newConfusionWindow(25*time.Second, 5)
	base := time.Now()

	// Four actions, then a long pause: the fifth must not fire because
	// the earlier four have aged out of the window.
	for i := 0; i < 4; i++ {
		w.Record(base.Add(time.Duration(i) * time.Second))
	}
	if _, fired := w.Record(base.Add(40 * time.Second)); fired {
		t.Fatal("fired on stale actions outside the lookback")
	}
}

func TestConfusionWindowClearsAfterFiring(t *testing.T) {
	t.Parallel()

	w := newConfusionWindow(25*time.Second, 5)
	base := time.Now()

	for i := 0; i < 5; i++ {
		w.Record(base)
	}
	// The window cleared on firing, so four rapid follow-ups stay silent.
	for i := 0; i < 4; i++ {
		if _, fired := w.Record(base.Add(time.Second)); fired {
			t.Fatal("re-fired before the window repopulated")
		}
	}
	if _, fired := w.Record(base.Add(time.Second)); !fired {
		t.Error("did not fire once the window repopulated")
	}
}

func TestSchedulerReplaceInvalidatesPrior(t *testing.T) {
	t.Parallel()

	s := NewScheduler()
	defer s.Stop()

	var first, second atomic.Int32
	s.Schedule(KindHesitation, 10*time.Millisecond, func() { first.Add(1) })
	s.Schedule(KindHesitation, 10*time.Millisecond, func() { second.Add(1) })

	time.Sleep(50 * time.Millisecond)
	if first.Load() != 0 {
		t.Error("replaced firing still ran")
	}
	if second.Load() != 1 {
		t.Errorf("current firing ran %d times, want 1", second.Load())
	}
}

func TestSchedulerCancel(t *testing.T) {
	t.Parallel()

	s := NewScheduler()
	defer s.Stop()

	var fired atomic.Int32
	s.Schedule(KindPostAtc, 10*time.Millisecond, func() { fired.Add(1) })
	s.Cancel(KindPostAtc)

	time.Sleep(50 * time.Millisecond)
	if fired.Load() != 0 {
		t.Error("cancelled firing still ran")
	}
}

func TestSchedulerKindsAreIndependent(t *testing.T) {
	t.Parallel()

	s := NewScheduler()
	defer s.Stop()

	var mu sync.Mutex
	fired := map[DetectorKind]int{}
	mark := func(kind DetectorKind) func() {
		return func() {
			mu.Lock()
			fired[kind]++
			mu.Unlock()
		}
	}

	s.Schedule(KindHesitation, 10*time.Millisecond, mark(KindHesitation))
	s.Schedule(KindCartInactivity, 10*time.Millisecond, mark(KindCartInactivity))
	s.Cancel(KindHesitation)

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if fired[KindHesitation] != 0 {
		t.Error("cancelled kind fired")
	}
	if fired[KindCartInactivity] != 1 {
		t.Errorf("independent kind fired %d times, want 1", fired[KindCartInactivity])
	}
}

func TestSchedulerStopSilencesEverything(t *testing.T) {
	t.Parallel()

	s := NewScheduler()

	var fired atomic.Int32
	s.Schedule(KindHesitation, 5*time.Millisecond, func() { fired.Add(1) })
	s.Schedule(KindCartInactivity, 5*time.Millisecond, func() { fired.Add(1) })
	s.Stop()

	time.Sleep(30 * time.Millisecond)
	if fired.Load() != 0 {
		t.Errorf("%d firings ran after Stop", fired.Load())
	}
}
