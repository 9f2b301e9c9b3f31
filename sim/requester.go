// sim/requester.go
package sim

// CompUnitsGen samples a positive quantity of compute units for one Core
// invocation. Injected so scenarios control the work-size distribution.
type CompUnitsGen func() float64

// ServerPicker resolves a service name to the Server that should process
// it. Injected (spec.md §6) so load-balancing policy lives outside the
// core engine; see the loadbalancer package for implementations.
type ServerPicker func(svcName string) *Server

// CoreFunc transforms a Core request's input value into its output value.
// A nil CoreFunc is equivalent to one that always returns nil, per
// spec.md §4.4's "default f ≡ const null".
type CoreFunc func(inVal interface{}) interface{}

// Reducer folds a Par's sub-request output values into the Par's own
// output value. A nil Reducer is equivalent to one that always returns
// nil, per spec.md §4.4's "default reducer returns null".
type Reducer func(outVals []interface{}) interface{}

// SvcRequester is the common interface of every combinator in the
// algebra of spec.md §4.4: a factory that manufactures SvcRequest values
// and knows how to run one to completion against a Scheduler.
type SvcRequester interface {
	// MakeRequest manufactures a new SvcRequest. The target server (where
	// applicable) is resolved here, not at submit time, so it is visible
	// to any enclosing combinator before submission.
	MakeRequest(inVal interface{}, parent *SvcRequest, inBlockingCall bool) *SvcRequest
	// Submit spawns the process that carries req through its lifecycle
	// and returns the Process so callers can join on it.
	Submit(sched *Scheduler, req *SvcRequest) *Process
}

// markSubmitted assigns req's deterministic ID (if not already assigned —
// Seq/Par sub-requests only reach here once, but an Async's manufactured
// inner request shares this chokepoint too), records "submitted" on req,
// or panics with the ContractViolation, matching spec.md §7's "fatal,
// indicates a bug in the algebra composition" treatment of double
// submission.
func markSubmitted(sched *Scheduler, req *SvcRequest) {
	if req.ID == "" {
		req.ID = sched.NextRequestID()
	}
	if err := req.MarkSubmitted(sched.Now()); err != nil {
		panic(err)
	}
}

// complete completes req or panics with the ContractViolation on double
// completion.
func complete(sched *Scheduler, req *SvcRequest, outVal interface{}) {
	if err := req.Complete(outVal, sched.Now()); err != nil {
		panic(err)
	}
}

// -----------------------------------------------------------------------
// Core
// -----------------------------------------------------------------------

// CoreRequester is the atomic leaf of the algebra: acquire a software
// thread (unless already inside a blocking scope), acquire a hardware
// thread, occupy it for process_duration(comp_units) of virtual time,
// release it, complete, release the software thread. Grounded on
// original_source/serversim/service.py's CoreSvcRequester._fgen.
type CoreRequester struct {
	Name         string
	CompUnitsGen CompUnitsGen
	Picker       ServerPicker
	F            CoreFunc
}

var _ SvcRequester = (*CoreRequester)(nil)

func (c *CoreRequester) MakeRequest(inVal interface{}, parent *SvcRequest, inBlockingCall bool) *SvcRequest {
	server := c.Picker(c.Name)
	return NewSvcRequest(c.Name, server, inVal, parent, inBlockingCall)
}

func (c *CoreRequester) Submit(sched *Scheduler, req *SvcRequest) *Process {
	return sched.Spawn(func(p *Process) {
		markSubmitted(sched, req)
		srv := req.Server

		var swGrant Ticket
		if !req.InBlockingCall {
			req.Record("sw_thread_requested", sched.Now())
			swGrant = srv.ThreadRequest(p, req)
			req.Record("sw_thread_acquired", sched.Now())
		}

		req.Record("hw_thread_requested", sched.Now())
		hwGrant := srv.HwRequest(p, req)
		req.Record("hw_thread_acquired", sched.Now())

		compUnits := c.CompUnitsGen()
		p.Sleep(srv.ProcessDuration(compUnits))

		req.Record("hw_thread_released", sched.Now())
		srv.HwRelease(hwGrant)

		var outVal interface{}
		if c.F != nil {
			outVal = c.F(req.InVal)
		}
		complete(sched, req, outVal)

		if !req.InBlockingCall {
			srv.ThreadRelease(swGrant)
			req.Record("sw_thread_released", sched.Now())
		}
	})
}

// -----------------------------------------------------------------------
// Async
// -----------------------------------------------------------------------

// AsyncRequester submits inner as a new independent top-level request and
// completes immediately without waiting for it. The inner request races
// against simulation end and may never be observed by anything after it
// starts.
type AsyncRequester struct {
	Name  string
	Inner SvcRequester
}

var _ SvcRequester = (*AsyncRequester)(nil)

func (a *AsyncRequester) MakeRequest(inVal interface{}, parent *SvcRequest, inBlockingCall bool) *SvcRequest {
	return NewSvcRequest(a.Name, nil, inVal, parent, inBlockingCall)
}

func (a *AsyncRequester) Submit(sched *Scheduler, req *SvcRequest) *Process {
	return sched.Spawn(func(p *Process) {
		markSubmitted(sched, req)
		innerReq := a.Inner.MakeRequest(req.InVal, nil, false)
		a.Inner.Submit(sched, innerReq)
		complete(sched, req, nil)
	})
}

// -----------------------------------------------------------------------
// Blocking
// -----------------------------------------------------------------------

// BlockingRequester wraps inner, forcing it (and everything inner
// transitively submits) to run under a single software-thread hold for
// the whole composite span: the inner request inherits this request's
// server and is always marked in_blocking_call, so none of its own atoms
// re-acquire a software thread.
type BlockingRequester struct {
	Name   string
	Inner  SvcRequester
	Picker ServerPicker
}

var _ SvcRequester = (*BlockingRequester)(nil)

func (b *BlockingRequester) MakeRequest(inVal interface{}, parent *SvcRequest, inBlockingCall bool) *SvcRequest {
	server := b.Picker(b.Name)
	return NewSvcRequest(b.Name, server, inVal, parent, inBlockingCall)
}

func (b *BlockingRequester) Submit(sched *Scheduler, req *SvcRequest) *Process {
	return sched.Spawn(func(p *Process) {
		markSubmitted(sched, req)

		alreadyBlocking := req.InBlockingCall
		var swGrant Ticket
		if !alreadyBlocking {
			req.Record("sw_thread_requested", sched.Now())
			swGrant = req.Server.ThreadRequest(p, req)
			req.Record("sw_thread_acquired", sched.Now())
		}

		innerReq := b.Inner.MakeRequest(req.InVal, req, true)
		innerReq.Server = req.Server
		innerProc := b.Inner.Submit(sched, innerReq)
		p.AwaitAll([]*Process{innerProc})

		complete(sched, req, innerReq.OutVal)

		if !alreadyBlocking {
			req.Server.ThreadRelease(swGrant)
			req.Record("sw_thread_released", sched.Now())
		}
	})
}

// -----------------------------------------------------------------------
// Seq
// -----------------------------------------------------------------------

// seqState carries the eagerly-manufactured head sub-request from
// SeqRequester.MakeRequest through to SeqRequester.Submit.
type seqState struct {
	head *SvcRequest
}

// SeqRequester sequentially composes a list of sub-requesters, threading
// each step's output value into the next step's input. cont=true models
// an in-server continuation: every step shares this request's server, and
// (if the enclosing scope is itself blocking) none of them re-acquires a
// software thread. cont=false models independently load-balanced hops.
type SeqRequester struct {
	Name string
	Reqs []SvcRequester
	Cont bool
}

var _ SvcRequester = (*SeqRequester)(nil)

func (s *SeqRequester) MakeRequest(inVal interface{}, parent *SvcRequest, inBlockingCall bool) *SvcRequest {
	req := NewSvcRequest(s.Name, nil, inVal, parent, inBlockingCall)
	head := s.Reqs[0].MakeRequest(inVal, req, inBlockingCall)
	req.Server = head.Server
	req.aux = &seqState{head: head}
	return req
}

func (s *SeqRequester) Submit(sched *Scheduler, req *SvcRequest) *Process {
	return sched.Spawn(func(p *Process) {
		markSubmitted(sched, req)

		st := req.aux.(*seqState)
		proc := s.Reqs[0].Submit(sched, st.head)
		p.AwaitAll([]*Process{proc})
		val := st.head.OutVal

		for i := 1; i < len(s.Reqs); i++ {
			childInBlocking := false
			if s.Cont {
				childInBlocking = req.InBlockingCall
			}
			child := s.Reqs[i].MakeRequest(val, req, childInBlocking)
			if s.Cont {
				child.Server = req.Server
			}
			childProc := s.Reqs[i].Submit(sched, child)
			p.AwaitAll([]*Process{childProc})
			val = child.OutVal
		}

		complete(sched, req, val)
	})
}

// -----------------------------------------------------------------------
// Par
// -----------------------------------------------------------------------

// ParRequester submits one sub-request per element of Reqs concurrently,
// each seeded with the same input value, and completes with
// Reducer(subOutVals) once every sub-request has completed. cont=true
// pins every sub-request (and this request) to a single server; cont=false
// routes each sub-request independently and always runs them outside any
// enclosing blocking scope.
type ParRequester struct {
	Name    string
	Reqs    []SvcRequester
	Reducer Reducer
	Cont    bool
}

var _ SvcRequester = (*ParRequester)(nil)

func (pr *ParRequester) MakeRequest(inVal interface{}, parent *SvcRequest, inBlockingCall bool) *SvcRequest {
	req := NewSvcRequest(pr.Name, nil, inVal, parent, inBlockingCall)

	subs := make([]*SvcRequest, len(pr.Reqs))
	for i, sr := range pr.Reqs {
		childInBlocking := false
		if pr.Cont {
			childInBlocking = inBlockingCall
		}
		subs[i] = sr.MakeRequest(inVal, req, childInBlocking)
	}

	if pr.Cont {
		server := subs[0].Server
		if parent != nil && parent.Server != nil {
			server = parent.Server
		}
		for _, sub := range subs {
			sub.Server = server
		}
		req.Server = server
	} else {
		req.Server = subs[0].Server
	}

	req.aux = subs
	return req
}

func (pr *ParRequester) Submit(sched *Scheduler, req *SvcRequest) *Process {
	return sched.Spawn(func(p *Process) {
		markSubmitted(sched, req)

		subs := req.aux.([]*SvcRequest)
		procs := make([]*Process, len(subs))
		for i, sub := range subs {
			procs[i] = pr.Reqs[i].Submit(sched, sub)
		}
		p.AwaitAll(procs)

		outVals := make([]interface{}, len(subs))
		for i, sub := range subs {
			outVals[i] = sub.OutVal
		}
		var result interface{}
		if pr.Reducer != nil {
			result = pr.Reducer(outVals)
		}
		complete(sched, req, result)
	})
}
