package traffic

import (
	"testing"
	"time"
)

// TestErrorRate_CountsWithinWindow verifies error and total counts over the
// sliding window.
func TestErrorRate_CountsWithinWindow(t *testing.T) {
	var tr Tracker
	tr.RecordSuccess()
	tr.RecordSuccess()
	tr.RecordError()

	errors, total := tr.ErrorRate(time.Minute)
	if errors != 1 || total != 3 {
		t.Errorf("ErrorRate = (%d, %d), want (1, 3)", errors, total)
	}
}

// TestErrorRate_Empty verifies a fresh tracker reports zero outcomes.
func TestErrorRate_Empty(t *testing.T) {
	var tr Tracker
	errors, total := tr.ErrorRate(time.Minute)
	if errors != 0 || total != 0 {
		t.Errorf("ErrorRate = (%d, %d), want (0, 0)", errors, total)
	}
}

// TestReset clears recorded outcomes.
func TestReset(t *testing.T) {
	var tr Tracker
	tr.RecordError()
	tr.Reset()
	if errors, total := tr.ErrorRate(time.Minute); errors != 0 || total != 0 {
		t.Errorf("ErrorRate after Reset = (%d, %d), want (0, 0)", errors, total)
	}
}

// TestPackageLevelTracker verifies the shared default tracker records through
// the package functions.
func TestPackageLevelTracker(t *testing.T) {
	Reset()
	defer Reset()

	RecordSuccess()
	RecordError()
	errors, total := ErrorRate(time.Minute)
	if errors != 1 || total != 2 {
		t.Errorf("ErrorRate = (%d, %d), want (1, 2)", errors, total)
	}
}
