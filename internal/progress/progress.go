package progress

import (
	"fmt"
	"sync"
)

// Sink receives progress for one operation. Reports are percentages in
// [0,100]. Reporting never blocks and never fails.
type Sink interface {
	Report(percent int)

	// PreventCancel tells the display that the operation passed its point of no return.
	PreventCancel()
}

// ScaleValue maps a child's percent onto the [from,to] slice of a parent
// range of size total. percent is clamped to [0,100] first, so the
// result always stays inside the slice.
func ScaleValue(percent, from, to, total int) int {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	scaled := from + percent*(to-from)/100
	if total != 100 && total > 0 {
		scaled = scaled * 100 / total
	}
	return scaled
}

type scaled struct {
	parent          Sink
	from, to, total int
}

// Scale returns a child sink whose reports land in [from,to] of parent.
// It panics unless 0 <= from <= to <= total.
func Scale(parent Sink, from, to, total int) Sink {
	if from < 0 || from > to || to > total || total <= 0 {
		panic(fmt.Sprintf("progress: invalid scale %d..%d of %d", from, to, total))
	}
	if parent == nil {
		parent = Discard
	}
	return &scaled{parent: parent, from: from, to: to, total: total}
}

func (s *scaled) Report(percent int) {
	s.parent.Report(ScaleValue(percent, s.from, s.to, s.total))
}

func (s *scaled) PreventCancel() {
	s.parent.PreventCancel()
}

type discard struct{}

func (discard) Report(int)     {}
func (discard) PreventCancel() {}

// Discard ignores all progress.
var Discard Sink = discard{}

// Tracker is a root Sink. It keeps only strictly increasing values,
// remembers them, and forwards each kept value to an optional display.
type Tracker struct {
	mu        sync.Mutex
	values    []int
	prevented bool
	display   func(percent int, cancellable bool)
}

// NewTracker creates a tracker. display may be nil.
func NewTracker(display func(percent int, cancellable bool)) *Tracker {
	return &Tracker{display: display}
}

// Report records percent if it is higher than the last recorded value.
func (t *Tracker) Report(percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	t.mu.Lock()
	if n := len(t.values); n > 0 && percent <= t.values[n-1] {
		t.mu.Unlock()
		return
	}
	t.values = append(t.values, percent)
	display, cancellable := t.display, !t.prevented
	t.mu.Unlock()

	if display != nil {
		display(percent, cancellable)
	}
}

// PreventCancel latches once; later calls are no-ops.
func (t *Tracker) PreventCancel() {
	t.mu.Lock()
	t.prevented = true
	t.mu.Unlock()
}

// CancelPrevented reports whether PreventCancel was called.
func (t *Tracker) CancelPrevented() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.prevented
}

// Values returns the recorded values in order.
func (t *Tracker) Values() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]int(nil), t.values...)
}

// Reset forgets the recorded values and the prevent-cancel latch, so a
// restarted run is shown from the start.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.values = nil
	t.prevented = false
	t.mu.Unlock()
}

// Last returns the last recorded value, or -1 if nothing was reported.
func (t *Tracker) Last() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.values) == 0 {
		return -1
	}
	return t.values[len(t.values)-1]
}
