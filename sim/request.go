// sim/request.go
package sim

import "fmt"

// TimeLogEntry is one labeled virtual timestamp in a SvcRequest's
// lifecycle, e.g. ("submitted", 3.0), ("hw_thread_acquired", 3.1).
type TimeLogEntry struct {
	Label string
	Time  float64
}

// SvcRequest is a single request flowing through the algebra of §4.4: a
// named value carrier with an ordered time_log of the labeled virtual
// timestamps spec.md §4.4/§8 names (submitted, sw_thread_requested,
// sw_thread_acquired, hw_thread_requested, hw_thread_acquired,
// hw_thread_released, sw_thread_released, completed — labels skipped when
// out of blocking scope are simply absent, never recorded with a zero
// placeholder). Grounded on original_source/serversim/service.py's
// SvcRequest class.
type SvcRequest struct {
	ID             string
	Name           string
	Server         *Server
	InVal          interface{}
	OutVal         interface{}
	Parent         *SvcRequest
	InBlockingCall bool

	submitted bool
	completed bool
	timeLog   []TimeLogEntry

	// aux holds per-combinator manufacture-time state (e.g. a Seq's
	// eagerly-manufactured head sub-request, a Par's sub-request slice)
	// that must survive from MakeRequest to Submit but is not part of the
	// public request model.
	aux interface{}
}

// NewSvcRequest constructs a SvcRequest. ID is left empty until the
// request is submitted: markSubmitted assigns it from the owning
// Scheduler's run-scoped monotonic counter, never from a random source,
// so that two runs with the same seed produce bit-identical request IDs
// (spec.md §5).
func NewSvcRequest(name string, server *Server, inVal interface{}, parent *SvcRequest, inBlockingCall bool) *SvcRequest {
	return &SvcRequest{
		Name:           name,
		Server:         server,
		InVal:          inVal,
		Parent:         parent,
		InBlockingCall: inBlockingCall,
	}
}

// Record appends a labeled timestamp to the request's time_log.
func (r *SvcRequest) Record(label string, t float64) {
	r.timeLog = append(r.timeLog, TimeLogEntry{Label: label, Time: t})
}

// TimeLog returns the ordered sequence of labeled timestamps recorded so
// far. The returned slice is a copy; mutating it does not affect r.
func (r *SvcRequest) TimeLog() []TimeLogEntry {
	out := make([]TimeLogEntry, len(r.timeLog))
	copy(out, r.timeLog)
	return out
}

// At returns the first recorded time for label and true, or (0, false) if
// that label was never recorded (e.g. sw_thread_requested under a
// blocking scope that skips it).
func (r *SvcRequest) At(label string) (float64, bool) {
	for _, e := range r.timeLog {
		if e.Label == label {
			return e.Time, true
		}
	}
	return 0, false
}

// MarkSubmitted records "submitted" and guards against double submission.
// Returns a ContractViolation if this request was already submitted.
func (r *SvcRequest) MarkSubmitted(t float64) error {
	if r.submitted {
		return &ContractViolation{Component: "SvcRequest", Reason: fmt.Sprintf("request %s submitted twice", r.ID)}
	}
	r.submitted = true
	r.Record("submitted", t)
	return nil
}

// Complete sets outVal, records "completed", and guards against
// completing an already-completed request. Returns a ContractViolation on
// double completion, per spec.md §7.
func (r *SvcRequest) Complete(outVal interface{}, t float64) error {
	if r.completed {
		return &ContractViolation{Component: "SvcRequest", Reason: fmt.Sprintf("request %s completed twice", r.ID)}
	}
	r.OutVal = outVal
	r.completed = true
	r.Record("completed", t)
	return nil
}

// IsCompleted reports whether Complete has already succeeded for r.
func (r *SvcRequest) IsCompleted() bool { return r.completed }
