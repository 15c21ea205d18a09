package traffic

import (
	"testing"
	"time"
)

func TestTracker_RequestCount(t *testing.T) {
	var tracker Tracker

	tracker.RecordSuccess()
	tracker.RecordSuccess()
	tracker.RecordError()
	tracker.RecordDenied()

	if got := tracker.RequestCount(time.Minute); got != 4 {
		t.Errorf("RequestCount() = %d, want 4 (successes + errors + denials)", got)
	}
	if got := tracker.DenialCount(time.Minute); got != 1 {
		t.Errorf("DenialCount() = %d, want 1", got)
	}
}

func TestTracker_ErrorRateExcludesDenials(t *testing.T) {
	var tracker Tracker

	tracker.RecordSuccess()
	tracker.RecordSuccess()
	tracker.RecordSuccess()
	tracker.RecordError()
	tracker.RecordDenied()

	errs, total := tracker.ErrorRate(time.Minute)
	if errs != 1 {
		t.Errorf("errors = %d, want 1", errs)
	}
	if total != 4 {
		t.Errorf("total = %d, want 4 (denials excluded)", total)
	}
}

func TestTracker_WindowExcludesOldEntries(t *testing.T) {
	var tracker Tracker

	tracker.RecordSuccess()
	time.Sleep(15 * time.Millisecond)
	tracker.RecordSuccess()

	// Only the second record falls inside a 10ms window.
	if got := tracker.RequestCount(10 * time.Millisecond); got != 1 {
		t.Errorf("RequestCount(10ms) = %d, want 1", got)
	}
	if got := tracker.RequestCount(time.Minute); got != 2 {
		t.Errorf("RequestCount(1m) = %d, want 2", got)
	}
}

func TestTracker_Reset(t *testing.T) {
	var tracker Tracker

	tracker.RecordSuccess()
	tracker.RecordError()
	tracker.RecordDenied()
	tracker.Reset()

	if got := tracker.RequestCount(time.Minute); got != 0 {
		t.Errorf("RequestCount() after Reset = %d, want 0", got)
	}
}

func TestPackageLevelTracker(t *testing.T) {
	Reset()
	defer Reset()

	RecordSuccess()
	RecordError()
	RecordDenied()

	if got := RequestCount(time.Minute); got != 3 {
		t.Errorf("RequestCount() = %d, want 3", got)
	}
	if got := DenialCount(time.Minute); got != 1 {
		t.Errorf("DenialCount() = %d, want 1", got)
	}
	errs, total := ErrorRate(time.Minute)
	if errs != 1 || total != 2 {
		t.Errorf("ErrorRate() = %d/%d, want 1/2", errs, total)
	}
}
