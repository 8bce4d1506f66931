package tracker

import (
	"time"
)

// confusionWindow is the sliding window behind the search/filter confusion
// detector. Each qualifying action timestamp is recorded, the window is
// trimmed to the trailing lookback, and reaching the threshold fires once
// and clears the window entirely. That is a self-cooldown independent of
// the global gate: the window must naturally repopulate before the
// detector can fire again.
type confusionWindow struct {
	lookback time.Duration
	min      int
	stamps   []time.Time
}

func newConfusionWindow(lookback time.Duration, min int) *confusionWindow {
	return &confusionWindow{lookback: lookback, min: min}
}

// Record adds one qualifying action. It returns (count, true) when the
// threshold was just reached; count is the number of actions that were in
// the window at firing time.
func (w *confusionWindow) Record(now time.Time) (int, bool) {
	w.stamps = append(w.stamps, now)

	kept := w.stamps[:0]
	for _, ts := range w.stamps {
		if now.Sub(ts) <= w.lookback {
			kept = append(kept, ts)
		}
	}
	w.stamps = kept

	if len(w.stamps) >= w.min {
		count := len(w.stamps)
		w.stamps = nil
		return count, true
	}
	return len(w.stamps), false
}
