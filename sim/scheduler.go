// sim/scheduler.go
package sim

import (
	"container/heap"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ProcessState is the lifecycle state of a cooperative Process.
type ProcessState int

const (
	Runnable ProcessState = iota
	Suspended
	Completed
)

func (s ProcessState) String() string {
	switch s {
	case Runnable:
		return "Runnable"
	case Suspended:
		return "Suspended"
	case Completed:
		return "Completed"
	default:
		return "Unknown"
	}
}

// Process is a cooperative unit of work. Go has no native generator, so a
// Process pairs a goroutine with an unbuffered handoff channel: the
// Scheduler owns the single token of execution and resumes exactly one
// Process at a time, preserving spec.md §5's "exactly one logical process
// executes at a time" invariant without any locking.
type Process struct {
	id       uint64
	sched    *Scheduler
	resumeCh chan struct{}
	state    ProcessState

	// doneCallbacks run (in the scheduler goroutine, never concurrently
	// with anything) once this process finishes. Used by AwaitAll to wake
	// a joining process when every joinee has completed.
	doneCallbacks []func()
}

// State returns the process's current lifecycle state.
func (p *Process) State() ProcessState { return p.state }

// Sleep suspends the calling process for delay virtual seconds. delay must
// be >= 0.
func (p *Process) Sleep(delay float64) {
	p.sched.scheduleKind(delay, p, KindTimeout)
	p.suspendUntilResumed()
}

// AwaitAll suspends the calling process until every process in subs has
// completed. Spawns are expected to already be running (scheduled); the
// order subs were started in is preserved by the caller, matching spec.md
// §5's "sub-process spawns from a single parent observe a deterministic
// order matching list order".
func (p *Process) AwaitAll(subs []*Process) {
	remaining := 0
	for _, sp := range subs {
		if sp.state != Completed {
			remaining++
		}
	}
	if remaining == 0 {
		return
	}
	count := remaining
	for _, sp := range subs {
		if sp.state == Completed {
			continue
		}
		sp.doneCallbacks = append(sp.doneCallbacks, func() {
			count--
			if count == 0 {
				p.sched.scheduleKind(0, p, KindCompletion)
			}
		})
	}
	p.suspendUntilResumed()
}

// suspendUntilResumed hands control back to the scheduler and blocks until
// the scheduler resumes this process via resumeCh.
func (p *Process) suspendUntilResumed() {
	p.state = Suspended
	p.sched.control <- controlMsg{proc: p, yielded: true}
	<-p.resumeCh
	p.state = Runnable
}

type controlMsg struct {
	proc     *Process
	yielded  bool
	finished bool
}

// Scheduler is a single-threaded, cooperative, virtual-time event loop.
// Adapted from the teacher's Simulator type in sim/simulator.go: the same
// container/heap-backed event queue, the same "pop head, advance clock
// only forward, dispatch" loop shape, and the same logrus logging
// discipline (Debug per event, Info at run boundaries).
type Scheduler struct {
	now     float64
	events  eventQueue
	seq     uint64
	reqSeq  uint64
	control chan controlMsg
}

// NewScheduler creates a Scheduler with an empty event queue at time 0.
func NewScheduler() *Scheduler {
	return &Scheduler{
		events:  make(eventQueue, 0),
		control: make(chan controlMsg),
	}
}

// Now returns the scheduler's current virtual time.
func (s *Scheduler) Now() float64 { return s.now }

func (s *Scheduler) nextSeq() uint64 {
	s.seq++
	return s.seq
}

// NextRequestID returns a deterministic, run-scoped, monotonically
// increasing request identifier. Used in place of a random UUID so that
// two runs seeded and scheduled identically produce bit-identical
// request IDs in logs and traces (spec.md §5).
func (s *Scheduler) NextRequestID() string {
	s.reqSeq++
	return fmt.Sprintf("req-%d", s.reqSeq)
}

// Schedule enqueues a resume of proc at now+delay. A negative delay is
// rejected with an error. Duplicate scheduling is not detected: a process
// that is already queued or running is enqueued again without error.
func (s *Scheduler) Schedule(delay float64, proc *Process) error {
	return s.scheduleKindErr(delay, proc, KindTimeout)
}

func (s *Scheduler) scheduleKind(delay float64, proc *Process, kind EventKind) {
	if err := s.scheduleKindErr(delay, proc, kind); err != nil {
		panic(err)
	}
}

func (s *Scheduler) scheduleKindErr(delay float64, proc *Process, kind EventKind) error {
	if delay < 0 {
		return fmt.Errorf("sim: scheduled delay must be >= 0, got %v", delay)
	}
	heap.Push(&s.events, &event{
		time:   s.now + delay,
		seq:    s.nextSeq(),
		kind:   kind,
		target: proc,
	})
	return nil
}

// Spawn wraps fn as a Process and schedules its first resume at the
// current time, mirroring the teacher's Simulator.process(generator)
// concept (spec.md §4.1 process(generator)).
func (s *Scheduler) Spawn(fn func(p *Process)) *Process {
	p := &Process{
		id:       s.nextSeq(),
		sched:    s,
		resumeCh: make(chan struct{}),
		state:    Runnable,
	}
	go func() {
		<-p.resumeCh
		fn(p)
		s.control <- controlMsg{proc: p, finished: true}
	}()
	s.scheduleKind(0, p, KindProcessResume)
	return p
}

// ErrNegativeHorizon is returned by Run when until < 0.
var ErrNegativeHorizon = errors.New("sim: simulation horizon must be >= 0")

// Run drains the event queue, advancing the virtual clock as needed, until
// either the queue is empty or now >= until. The clock never advances past
// until: when the next event lies beyond the horizon, now stops at until.
// Any process still suspended
// at that point is simply never resumed again (spec.md §4.1, §5 "the only
// termination condition is the simulation's until bound").
func (s *Scheduler) Run(until float64) error {
	if until < 0 {
		return ErrNegativeHorizon
	}
	logrus.Infof("scheduler: run starting, horizon=%v", until)
	for len(s.events) > 0 {
		head := s.events[0]
		if head.time > s.now {
			s.now = head.time
			if s.now > until {
				s.now = until
			}
		}
		if s.now >= until {
			break
		}
		ev := heap.Pop(&s.events).(*event)
		s.dispatch(ev)
	}
	logrus.Infof("scheduler: run ended at now=%v", s.now)
	return nil
}

// dispatch resumes ev.target and blocks until it yields (suspends again)
// or finishes, running any completion callbacks synchronously in this
// (the scheduler's) goroutine.
func (s *Scheduler) dispatch(ev *event) {
	proc := ev.target
	if proc.state == Completed {
		return
	}
	logrus.Debugf("scheduler: dispatch now=%v kind=%s proc=%d", s.now, ev.kind, proc.id)
	proc.resumeCh <- struct{}{}
	msg := <-s.control
	if msg.finished {
		proc.state = Completed
		cbs := proc.doneCallbacks
		proc.doneCallbacks = nil
		for _, cb := range cbs {
			cb()
		}
	}
}
