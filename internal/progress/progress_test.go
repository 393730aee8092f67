package progress

import (
	"reflect"
	"testing"
)

func TestScaleValue(t *testing.T) {
	tests := []struct {
		percent, from, to, total int
		want                     int
	}{
		{0, 10, 60, 100, 10},
		{50, 10, 60, 100, 35},
		{100, 10, 60, 100, 60},
		{150, 10, 60, 100, 60},
		{-5, 10, 60, 100, 10},
		{100, 0, 5, 10, 50},
	}
	for _, tt := range tests {
		if got := ScaleValue(tt.percent, tt.from, tt.to, tt.total); got != tt.want {
			t.Errorf("ScaleValue(%d, %d, %d, %d) = %d, want %d", tt.percent, tt.from, tt.to, tt.total, got, tt.want)
		}
	}
}

func TestScale(t *testing.T) {
	tracker := NewTracker(nil)
	child := Scale(tracker, 60, 95, 100)
	grandchild := Scale(child, 0, 50, 100)

	grandchild.Report(0)
	grandchild.Report(100)
	child.Report(100)

	if got, want := tracker.Values(), []int{60, 77, 95}; !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	grandchild.PreventCancel()
	if !tracker.CancelPrevented() {
		t.Error("Expected PreventCancel to reach the root")
	}

	Scale(nil, 0, 10, 100).Report(5)
}

func TestScalePanics(t *testing.T) {
	for _, r := range [][3]int{{-1, 10, 100}, {20, 10, 100}, {0, 110, 100}, {0, 0, 0}} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("Expected Scale(%d, %d, %d) to panic", r[0], r[1], r[2])
				}
			}()
			Scale(Discard, r[0], r[1], r[2])
		}()
	}
}

func TestTracker(t *testing.T) {
	type call struct {
		percent     int
		cancellable bool
	}
	var shown []call
	tracker := NewTracker(func(p int, c bool) { shown = append(shown, call{p, c}) })

	if tracker.Last() != -1 {
		t.Errorf("Expected -1 before any report, got %d", tracker.Last())
	}

	tracker.Report(0)
	tracker.Report(10)
	tracker.Report(10)
	tracker.Report(5)
	tracker.PreventCancel()
	tracker.Report(60)
	tracker.Report(120)
	tracker.Report(100)

	if got, want := tracker.Values(), []int{0, 10, 60, 100}; !reflect.DeepEqual(got, want) {
		t.Errorf("Expected strictly increasing %v, got %v", want, got)
	}
	want := []call{{0, true}, {10, true}, {60, false}, {100, false}}
	if !reflect.DeepEqual(shown, want) {
		t.Errorf("Expected display calls %v, got %v", want, shown)
	}
	if tracker.Last() != 100 {
		t.Errorf("Expected last 100, got %d", tracker.Last())
	}
}

func TestTrackerReset(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.Report(40)
	tracker.PreventCancel()
	tracker.Reset()

	if tracker.Last() != -1 || tracker.CancelPrevented() {
		t.Error("Expected Reset to forget values and the latch")
	}
	tracker.Report(0)
	tracker.Report(10)
	if got, want := tracker.Values(), []int{0, 10}; !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v after reset, got %v", want, got)
	}
}
