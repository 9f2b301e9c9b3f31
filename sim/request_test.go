package sim

import "testing"

func TestNewSvcRequest_LeavesIDEmptyUntilSubmitted(t *testing.T) {
	// ID is assigned deterministically at submission time (markSubmitted),
	// never at construction, and never from a random source (spec.md §5).
	r := NewSvcRequest("checkout", nil, nil, nil, false)
	if r.ID != "" {
		t.Errorf("ID = %q, want empty before submission", r.ID)
	}
}

func TestMarkSubmitted_AssignsDeterministicUniqueRequestIDs(t *testing.T) {
	sched := NewScheduler()
	a := NewSvcRequest("checkout", nil, nil, nil, false)
	b := NewSvcRequest("checkout", nil, nil, nil, false)

	markSubmitted(sched, a)
	markSubmitted(sched, b)

	if a.ID == "" || b.ID == "" {
		t.Fatalf("expected non-empty IDs, got a=%q b=%q", a.ID, b.ID)
	}
	if a.ID == b.ID {
		t.Errorf("two requests got the same ID %q", a.ID)
	}
}

func TestScheduler_NextRequestID_IsDeterministicAcrossIdenticalSchedulers(t *testing.T) {
	// GIVEN two freshly constructed, independent schedulers
	a := NewScheduler()
	b := NewScheduler()

	// WHEN the same sequence of IDs is drawn from each
	for i := 0; i < 5; i++ {
		idA := a.NextRequestID()
		idB := b.NextRequestID()

		// THEN they agree exactly, never drawing from a random source
		if idA != idB {
			t.Errorf("iteration %d: NextRequestID() = %q, %q, want equal", i, idA, idB)
		}
	}
}

func TestSvcRequest_At_ReturnsFirstMatchingLabel(t *testing.T) {
	r := NewSvcRequest("checkout", nil, nil, nil, false)
	r.Record("submitted", 1.0)
	r.Record("hw_thread_requested", 1.5)
	r.Record("hw_thread_acquired", 2.0)

	got, ok := r.At("hw_thread_acquired")
	if !ok || got != 2.0 {
		t.Errorf("At(hw_thread_acquired) = (%v, %v), want (2.0, true)", got, ok)
	}
}

func TestSvcRequest_At_UnrecordedLabel_ReturnsFalse(t *testing.T) {
	r := NewSvcRequest("checkout", nil, nil, nil, false)
	r.Record("submitted", 1.0)

	_, ok := r.At("sw_thread_requested")
	if ok {
		t.Error("At(sw_thread_requested) = true, want false (label never recorded)")
	}
}

func TestSvcRequest_TimeLog_PreservesRecordOrder(t *testing.T) {
	r := NewSvcRequest("checkout", nil, nil, nil, false)
	r.Record("submitted", 1.0)
	r.Record("completed", 3.0)

	log := r.TimeLog()
	want := []string{"submitted", "completed"}
	if len(log) != len(want) {
		t.Fatalf("TimeLog() has %d entries, want %d", len(log), len(want))
	}
	for i, label := range want {
		if log[i].Label != label {
			t.Errorf("TimeLog()[%d].Label = %q, want %q", i, log[i].Label, label)
		}
	}
}

func TestSvcRequest_TimeLog_ReturnsCopyNotAlias(t *testing.T) {
	// GIVEN a request with one recorded entry
	r := NewSvcRequest("checkout", nil, nil, nil, false)
	r.Record("submitted", 1.0)

	// WHEN the caller mutates the returned slice
	log := r.TimeLog()
	log[0].Time = 999

	// THEN the request's own time log is unaffected
	got, _ := r.At("submitted")
	if got != 1.0 {
		t.Errorf("internal time log was mutated via TimeLog()'s return value: At(submitted) = %v", got)
	}
}

func TestSvcRequest_MarkSubmitted_Twice_IsContractViolation(t *testing.T) {
	r := NewSvcRequest("checkout", nil, nil, nil, false)
	if err := r.MarkSubmitted(1.0); err != nil {
		t.Fatalf("first MarkSubmitted: %v", err)
	}
	err := r.MarkSubmitted(2.0)
	if err == nil {
		t.Fatal("second MarkSubmitted: expected ContractViolation, got nil")
	}
	if _, ok := err.(*ContractViolation); !ok {
		t.Errorf("err = %T, want *ContractViolation", err)
	}
}

func TestSvcRequest_Complete_Twice_IsContractViolation(t *testing.T) {
	r := NewSvcRequest("checkout", nil, nil, nil, false)
	if err := r.Complete("ok", 1.0); err != nil {
		t.Fatalf("first Complete: %v", err)
	}
	if !r.IsCompleted() {
		t.Error("IsCompleted() = false after a successful Complete")
	}
	err := r.Complete("ok again", 2.0)
	if err == nil {
		t.Fatal("second Complete: expected ContractViolation, got nil")
	}
	if _, ok := err.(*ContractViolation); !ok {
		t.Errorf("err = %T, want *ContractViolation", err)
	}
	// the first completion's OutVal must not be clobbered by the rejected
	// second call
	if r.OutVal != "ok" {
		t.Errorf("OutVal = %v, want %q (unchanged by the rejected double-complete)", r.OutVal, "ok")
	}
}

func TestSvcRequest_IsCompleted_FalseBeforeComplete(t *testing.T) {
	r := NewSvcRequest("checkout", nil, nil, nil, false)
	if r.IsCompleted() {
		t.Error("IsCompleted() = true before Complete was ever called")
	}
}
