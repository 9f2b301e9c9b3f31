// sim/resource.go
package sim

import "fmt"

// resourceWaiter is a queued request for a MeasuredResource slot, still
// waiting to be granted.
type resourceWaiter struct {
	proc     *Process
	queuedAt float64
}

// Ticket is the receipt Request hands back and Release consumes. It
// carries the virtual time the request was first submitted (not the time
// it was granted), so Release can measure the full submission-to-release
// span into cumServiceTime per spec.md §3/§4.2 and
// original_source/serversim/measuredresource.py, rather than only the
// post-grant hold.
type Ticket struct {
	submittedAt float64
}

// MeasuredResource is a bounded-capacity FIFO-queued resource that records
// the two cumulative measurements spec.md §4.2 defines — queue time (time
// spent waiting for a grant) and service time (the full span from
// submission through release, queueing included) — from which throughput, queue length, and
// utilization are all derived. Grounded on
// original_source/serversim/measuredresource.py. capacity <= 0 means
// unbounded (every request is granted immediately).
type MeasuredResource struct {
	name     string
	capacity int
	inUse    int
	waiters  []*resourceWaiter

	cumQueueTime   float64
	cumServiceTime float64
	releases       uint64

	sched *Scheduler
}

// NewMeasuredResource constructs a MeasuredResource. Returns a
// ConstructionError if capacity is negative.
func NewMeasuredResource(sched *Scheduler, name string, capacity int) (*MeasuredResource, error) {
	if capacity < 0 {
		return nil, &ConstructionError{
			Component: "MeasuredResource",
			Reason:    fmt.Sprintf("capacity must be >= 0, got %d", capacity),
		}
	}
	return &MeasuredResource{
		sched:    sched,
		name:     name,
		capacity: capacity,
	}, nil
}

// Name returns the resource's name, used in trace records and error
// messages.
func (r *MeasuredResource) Name() string { return r.name }

// Capacity returns the resource's configured concurrency bound.
func (r *MeasuredResource) Capacity() int { return r.capacity }

// InUse returns the number of slots currently held.
func (r *MeasuredResource) InUse() int { return r.inUse }

// QueueLength returns the number of waiters currently queued.
func (r *MeasuredResource) QueueLength() int { return len(r.waiters) }

// Request acquires one slot on behalf of p, suspending p if the resource
// is at capacity. Returns a Ticket recording the submission time —
// callers pass it back into Release so both the queue wait and the full
// submission-to-release span can be measured.
func (r *MeasuredResource) Request(p *Process) Ticket {
	submittedAt := r.sched.Now()
	if r.capacity > 0 && r.inUse >= r.capacity {
		r.waiters = append(r.waiters, &resourceWaiter{proc: p, queuedAt: submittedAt})
		// No event is scheduled here: this process stays suspended with
		// nothing pointing at it until Release grants its turn. Release
		// reserves the slot (inUse++) at grant time, not here, so a
		// concurrent arrival at the same instant can never jump ahead of
		// an already-granted waiter (spec.md §5 transactional grant).
		p.suspendUntilResumed()
		grantedAt := r.sched.Now()
		r.cumQueueTime += grantedAt - submittedAt
		return Ticket{submittedAt: submittedAt}
	}
	r.inUse++
	return Ticket{submittedAt: submittedAt}
}

// Release frees the slot acquired via t, handing it directly to the
// longest-waiting queued requester if any, without ever exposing a state
// where in_use has been decremented but the head waiter has not yet been
// granted (spec.md §5). cumServiceTime accumulates the full
// submission-to-release span, matching
// original_source/serversim/measuredresource.py, not just the post-grant
// hold — that hold-only duration is AvgUseTime, derived separately.
func (r *MeasuredResource) Release(t Ticket) {
	now := r.sched.Now()
	r.cumServiceTime += now - t.submittedAt
	r.releases++
	r.inUse--

	if len(r.waiters) == 0 {
		return
	}
	w := r.waiters[0]
	r.waiters = r.waiters[1:]
	r.inUse++
	r.sched.scheduleKind(0, w.proc, KindResourceGranted)
}

// Throughput returns releases / now. ProbeNotReady when now == 0.
func (r *MeasuredResource) Throughput() (float64, error) {
	now := r.sched.Now()
	if now == 0 {
		return 0, errProbeNotReady(r.name, "Throughput", "now == 0")
	}
	return float64(r.releases) / now, nil
}

// AvgQueueTime returns cumQueueTime / releases, the mean time a granted
// requester spent waiting before its grant.
func (r *MeasuredResource) AvgQueueTime() (float64, error) {
	if r.releases == 0 {
		return 0, errProbeNotReady(r.name, "AvgQueueTime", "releases == 0")
	}
	return r.cumQueueTime / float64(r.releases), nil
}

// AvgServiceTime returns cumServiceTime / releases, the mean end-to-end
// time a request spent on this resource from submission through release
// (queueing plus hold), per spec.md §3.
func (r *MeasuredResource) AvgServiceTime() (float64, error) {
	if r.releases == 0 {
		return 0, errProbeNotReady(r.name, "AvgServiceTime", "releases == 0")
	}
	return r.cumServiceTime / float64(r.releases), nil
}

// AvgUseTime returns the mean time a slot was actually held once granted
// (avg_service_time - avg_queue_time, per spec.md §3's derived
// avg_use_time), as opposed to AvgServiceTime's full submission-to-release
// span.
func (r *MeasuredResource) AvgUseTime() (float64, error) {
	svc, err := r.AvgServiceTime()
	if err != nil {
		return 0, err
	}
	queue, err := r.AvgQueueTime()
	if err != nil {
		return 0, err
	}
	return svc - queue, nil
}

// AvgQueueLength returns cumQueueTime / now, the time-averaged queue
// length implied by Little's Law applied to the wait queue alone.
func (r *MeasuredResource) AvgQueueLength() (float64, error) {
	now := r.sched.Now()
	if now == 0 {
		return 0, errProbeNotReady(r.name, "AvgQueueLength", "now == 0")
	}
	return r.cumQueueTime / now, nil
}

// Utilization returns (cumServiceTime - cumQueueTime) / (capacity * now),
// the capacity-normalized fraction of elapsed time this resource's slots
// spent actually held, per spec.md §3/§4.2. Undefined (ProbeNotReady) for
// an unbounded resource (capacity <= 0), since there is no fixed capacity
// to normalize against.
func (r *MeasuredResource) Utilization() (float64, error) {
	now := r.sched.Now()
	if now == 0 {
		return 0, errProbeNotReady(r.name, "Utilization", "now == 0")
	}
	if r.capacity <= 0 {
		return 0, errProbeNotReady(r.name, "Utilization", "resource is unbounded (capacity <= 0)")
	}
	return (r.cumServiceTime - r.cumQueueTime) / (float64(r.capacity) * now), nil
}
