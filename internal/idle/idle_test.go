package idle

import (
	"testing"
	"time"
)

func TestTracker_RequestCount(t *testing.T) {
	var tracker Tracker

	tracker.RecordRequest()
	tracker.RecordRequest()
	tracker.RecordRequest()

	if got := tracker.RequestCount(time.Minute); got != 3 {
		t.Errorf("RequestCount() = %d, want 3", got)
	}
}

func TestTracker_WindowExcludesOldEntries(t *testing.T) {
	var tracker Tracker

	tracker.RecordRequest()
	time.Sleep(15 * time.Millisecond)
	tracker.RecordRequest()

	if got := tracker.RequestCount(10 * time.Millisecond); got != 1 {
		t.Errorf("RequestCount(10ms) = %d, want 1", got)
	}
}

func TestTracker_Reset(t *testing.T) {
	var tracker Tracker

	tracker.RecordRequest()
	tracker.Reset()

	if got := tracker.RequestCount(time.Minute); got != 0 {
		t.Errorf("RequestCount() after Reset = %d, want 0", got)
	}
}

func TestPackageLevelTracker(t *testing.T) {
	Reset()
	defer Reset()

	RecordRequest()
	RecordRequest()

	if got := RequestCount(time.Minute); got != 2 {
		t.Errorf("RequestCount() = %d, want 2", got)
	}
}
