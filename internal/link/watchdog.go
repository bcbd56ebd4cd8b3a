package link

import "time"

// watchdog is a single-shot timer with at most one pending expiry.
//
// Every arm bumps a generation counter; an expiry carries the generation it
// was armed with so the controller can discard fires that lost a race with
// stop or re-arm. All methods must be called with the controller lock held.
type watchdog struct {
	timeout time.Duration
	fire    func(gen uint64)

	timer *time.Timer
	gen   uint64
}

func newWatchdog(timeout time.Duration, fire func(gen uint64)) *watchdog {
	return &watchdog{timeout: timeout, fire: fire}
}

// arm cancels any pending expiry and starts a new one.
func (w *watchdog) arm() {
	w.stop()
	w.gen++
	gen := w.gen
	w.timer = time.AfterFunc(w.timeout, func() {
		w.fire(gen)
	})
}

// stop cancels the pending expiry, if any.
func (w *watchdog) stop() {
	if w.timer == nil {
		return
	}
	w.timer.Stop()
	w.timer = nil
}

// expire consumes a fire. It returns false for stale generations.
func (w *watchdog) expire(gen uint64) bool {
	if w.timer == nil || gen != w.gen {
		return false
	}
	w.timer.Stop()
	w.timer = nil
	return true
}

// armed reports whether an expiry is pending.
func (w *watchdog) armed() bool {
	return w.timer != nil
}
