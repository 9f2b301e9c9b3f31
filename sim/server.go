// sim/server.go
package sim

import "fmt"

// AcquisitionRecorder receives one notification per hardware or software
// thread acquisition, tagged by resource kind ("hw" or "sw"), the owning
// server's name, and the request that acquired it. Grounded on
// original_source/serversim/server.py's optional hw_svc_req_log /
// sw_svc_req_log; implemented by the trace package.
type AcquisitionRecorder interface {
	RecordAcquisition(kind, serverName string, req *SvcRequest, at float64)
}

// Server composes the two MeasuredResources every request passes through:
// a hardware-thread resource bounding execution parallelism, and a
// software-thread resource bounding how many requests the server can hold
// open concurrently. Grounded on original_source/serversim/server.py.
type Server struct {
	name           string
	maxConcurrency int
	speed          float64

	hw *MeasuredResource
	sw *MeasuredResource

	recorder AcquisitionRecorder
}

// NewServer constructs a Server. maxConcurrency is the hardware-thread
// capacity, numThreads the software-thread capacity, speed the aggregate
// rate (compute units per virtual-time unit) across all hardware threads;
// each hardware thread processes at speed/maxConcurrency. Returns a ConstructionError for any non-positive speed,
// non-positive maxConcurrency, or negative numThreads.
func NewServer(sched *Scheduler, name string, maxConcurrency, numThreads int, speed float64) (*Server, error) {
	if speed <= 0 {
		return nil, &ConstructionError{Component: "Server", Reason: fmt.Sprintf("speed must be > 0, got %v", speed)}
	}
	if maxConcurrency < 1 {
		return nil, &ConstructionError{Component: "Server", Reason: fmt.Sprintf("max_concurrency must be >= 1, got %d", maxConcurrency)}
	}
	hw, err := NewMeasuredResource(sched, name+".hw", maxConcurrency)
	if err != nil {
		return nil, err
	}
	sw, err := NewMeasuredResource(sched, name+".sw", numThreads)
	if err != nil {
		return nil, err
	}
	return &Server{
		name:           name,
		maxConcurrency: maxConcurrency,
		speed:          speed,
		hw:             hw,
		sw:             sw,
	}, nil
}

// SetAcquisitionRecorder attaches an optional acquisition log. Passing nil
// disables logging.
func (s *Server) SetAcquisitionRecorder(rec AcquisitionRecorder) { s.recorder = rec }

// Name returns the server's name.
func (s *Server) Name() string { return s.name }

// MaxConcurrency returns the hardware-thread capacity.
func (s *Server) MaxConcurrency() int { return s.maxConcurrency }

// Speed returns the aggregate compute-units-per-virtual-time-unit rate
// across all hardware threads.
func (s *Server) Speed() float64 { return s.speed }

// ProcessDuration returns how long compUnits of work occupies a hardware
// thread: comp_units * max_concurrency / speed, per spec.md §4.3.
func (s *Server) ProcessDuration(compUnits float64) float64 {
	return compUnits * float64(s.maxConcurrency) / s.speed
}

// HwRequest acquires a hardware thread for req on behalf of p, returning
// the ticket to pass to HwRelease.
func (s *Server) HwRequest(p *Process, req *SvcRequest) Ticket {
	ticket := s.hw.Request(p)
	if s.recorder != nil {
		s.recorder.RecordAcquisition("hw", s.name, req, s.hw.sched.Now())
	}
	return ticket
}

// HwRelease releases the hardware thread acquired via ticket.
func (s *Server) HwRelease(ticket Ticket) { s.hw.Release(ticket) }

// ThreadRequest acquires a software thread for req on behalf of p,
// returning the ticket to pass to ThreadRelease. Named to match spec.md
// §4.3's thread_request/thread_release pair (the "thread" here is always
// the software thread; the hardware thread has its own Hw-prefixed pair).
func (s *Server) ThreadRequest(p *Process, req *SvcRequest) Ticket {
	ticket := s.sw.Request(p)
	if s.recorder != nil {
		s.recorder.RecordAcquisition("sw", s.name, req, s.sw.sched.Now())
	}
	return ticket
}

// ThreadRelease releases the software thread acquired via ticket.
func (s *Server) ThreadRelease(ticket Ticket) { s.sw.Release(ticket) }

// Throughput returns the hardware resource's completions per virtual-time
// unit (every request passes through exactly one hw acquisition).
func (s *Server) Throughput() (float64, error) { return s.hw.Throughput() }

// AvgProcessTime is the mean hardware-thread hold duration, i.e. the mean
// time spent actually processing a request once granted a hardware thread
// (spec.md §4.3: avg_process_time ≡ hw.avg_use_time — hold-only, not the
// full submission-to-release span AvgServiceTime reports).
func (s *Server) AvgProcessTime() (float64, error) { return s.hw.AvgUseTime() }

// AvgHwQueueTime is the mean wait for a hardware thread.
func (s *Server) AvgHwQueueTime() (float64, error) { return s.hw.AvgQueueTime() }

// AvgThreadQueueTime is the mean wait for a software thread.
func (s *Server) AvgThreadQueueTime() (float64, error) { return s.sw.AvgQueueTime() }

// AvgServiceTime is the mean end-to-end time a request spent on the
// server's software thread, from first requesting it through releasing
// it — queueing included, not just the hold (spec.md §4.3:
// avg_service_time ≡ sw.avg_service_time).
func (s *Server) AvgServiceTime() (float64, error) { return s.sw.AvgServiceTime() }

// AvgHwQueueLength is the time-averaged hardware wait-queue length.
func (s *Server) AvgHwQueueLength() (float64, error) { return s.hw.AvgQueueLength() }

// AvgThreadQueueLength is the time-averaged software wait-queue length.
func (s *Server) AvgThreadQueueLength() (float64, error) { return s.sw.AvgQueueLength() }

// HwQueueLength is the current (instantaneous) hardware wait-queue length.
func (s *Server) HwQueueLength() int { return s.hw.QueueLength() }

// ThreadQueueLength is the current software wait-queue length.
func (s *Server) ThreadQueueLength() int { return s.sw.QueueLength() }

// HwInUse is the current number of hardware threads held.
func (s *Server) HwInUse() int { return s.hw.InUse() }

// ThreadInUse is the current number of software threads held.
func (s *Server) ThreadInUse() int { return s.sw.InUse() }

// HwUtilization is the hardware resource's capacity-normalized
// utilization: (cum_service_time - cum_queue_time) / (capacity * now).
func (s *Server) HwUtilization() (float64, error) { return s.hw.Utilization() }

// ThreadUtilization is the software resource's capacity-normalized
// utilization.
func (s *Server) ThreadUtilization() (float64, error) { return s.sw.Utilization() }
