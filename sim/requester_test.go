package sim

import (
	"fmt"
	"testing"
)

func fixedGen(v float64) CompUnitsGen { return func() float64 { return v } }

func singleServerPicker(srv *Server) ServerPicker {
	return func(_ string) *Server { return srv }
}

func mustServer(t *testing.T, sched *Scheduler, name string, maxConcurrency, numThreads int, speed float64) *Server {
	t.Helper()
	srv, err := NewServer(sched, name, maxConcurrency, numThreads, speed)
	if err != nil {
		t.Fatalf("NewServer(%s): %v", name, err)
	}
	return srv
}

func TestCoreRequester_OccupiesServerForProcessDuration(t *testing.T) {
	// GIVEN a Core requester on a server with speed=1, max_concurrency=1,
	// processing 2 comp units
	sched := NewScheduler()
	srv := mustServer(t, sched, "web", 1, 1, 1.0)
	core := &CoreRequester{Name: "checkout", CompUnitsGen: fixedGen(2), Picker: singleServerPicker(srv)}

	var completedAt float64
	req := core.MakeRequest(nil, nil, false)
	proc := core.Submit(sched, req)
	proc.doneCallbacks = append(proc.doneCallbacks, func() { completedAt = sched.Now() })

	// WHEN the simulation runs to completion
	if err := sched.Run(100); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// THEN it completes at process_duration(2) = 2*1/1 = 2
	if completedAt != 2 {
		t.Errorf("completedAt = %v, want 2", completedAt)
	}
	if !req.IsCompleted() {
		t.Error("request never completed")
	}
}

func TestCoreRequester_AppliesF(t *testing.T) {
	sched := NewScheduler()
	srv := mustServer(t, sched, "web", 1, 1, 1.0)
	core := &CoreRequester{
		Name:         "double",
		CompUnitsGen: fixedGen(1),
		Picker:       singleServerPicker(srv),
		F:            func(in interface{}) interface{} { return in.(int) * 2 },
	}

	req := core.MakeRequest(21, nil, false)
	core.Submit(sched, req)
	if err := sched.Run(100); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if req.OutVal != 42 {
		t.Errorf("OutVal = %v, want 42", req.OutVal)
	}
}

func TestCoreRequester_NilF_OutputsNil(t *testing.T) {
	sched := NewScheduler()
	srv := mustServer(t, sched, "web", 1, 1, 1.0)
	core := &CoreRequester{Name: "noop", CompUnitsGen: fixedGen(1), Picker: singleServerPicker(srv)}

	req := core.MakeRequest("in", nil, false)
	core.Submit(sched, req)
	if err := sched.Run(100); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if req.OutVal != nil {
		t.Errorf("OutVal = %v, want nil", req.OutVal)
	}
}

func TestCoreRequester_RecordsFullTimeLog(t *testing.T) {
	// GIVEN a Core requester outside any blocking scope
	sched := NewScheduler()
	srv := mustServer(t, sched, "web", 1, 1, 1.0)
	core := &CoreRequester{Name: "checkout", CompUnitsGen: fixedGen(1), Picker: singleServerPicker(srv)}

	req := core.MakeRequest(nil, nil, false)
	core.Submit(sched, req)
	if err := sched.Run(100); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// THEN every spec.md §4.4 label appears, in order
	wantLabels := []string{
		"submitted", "sw_thread_requested", "sw_thread_acquired",
		"hw_thread_requested", "hw_thread_acquired", "hw_thread_released",
		"completed", "sw_thread_released",
	}
	log := req.TimeLog()
	if len(log) != len(wantLabels) {
		t.Fatalf("TimeLog() = %v, want labels %v", log, wantLabels)
	}
	for i, want := range wantLabels {
		if log[i].Label != want {
			t.Errorf("TimeLog()[%d].Label = %q, want %q", i, log[i].Label, want)
		}
	}
}

func TestCoreRequester_InBlockingCall_SkipsSoftwareThread(t *testing.T) {
	// GIVEN a Core requester manufactured with inBlockingCall=true (as a
	// Blocking combinator's inner leaf would be)
	sched := NewScheduler()
	srv := mustServer(t, sched, "web", 1, 1, 1.0)
	core := &CoreRequester{Name: "checkout", CompUnitsGen: fixedGen(1), Picker: singleServerPicker(srv)}

	req := core.MakeRequest(nil, nil, true)
	core.Submit(sched, req)
	if err := sched.Run(100); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// THEN no sw_thread_* labels are recorded at all
	if _, ok := req.At("sw_thread_requested"); ok {
		t.Error("sw_thread_requested was recorded despite InBlockingCall=true")
	}
	if _, ok := req.At("sw_thread_released"); ok {
		t.Error("sw_thread_released was recorded despite InBlockingCall=true")
	}
}

func TestAsyncRequester_CompletesImmediatelyWithoutWaitingForInner(t *testing.T) {
	// GIVEN an Async requester wrapping a slow Core
	sched := NewScheduler()
	srv := mustServer(t, sched, "web", 1, 1, 1.0)
	inner := &CoreRequester{Name: "slow", CompUnitsGen: fixedGen(100), Picker: singleServerPicker(srv)}
	async := &AsyncRequester{Name: "fire", Inner: inner}

	req := async.MakeRequest(nil, nil, false)
	async.Submit(sched, req)

	// WHEN the simulation runs for a much shorter horizon than the inner
	// request needs
	if err := sched.Run(1); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// THEN the async request itself is already complete
	if !req.IsCompleted() {
		t.Error("async request did not complete immediately")
	}
}

func TestBlockingRequester_HoldsSoftwareThreadForEntireInnerSpan(t *testing.T) {
	// GIVEN a Blocking requester wrapping a Core that processes 3 comp
	// units on a server with only 1 software thread
	sched := NewScheduler()
	srv := mustServer(t, sched, "db", 1, 1, 1.0)
	inner := &CoreRequester{Name: "query", CompUnitsGen: fixedGen(3), Picker: singleServerPicker(srv)}
	blocking := &BlockingRequester{Name: "txn", Inner: inner, Picker: singleServerPicker(srv)}

	req := blocking.MakeRequest(nil, nil, false)
	blocking.Submit(sched, req)

	// AND a second Blocking request arriving at the same instant, competing
	// for the same single software thread
	req2 := blocking.MakeRequest(nil, nil, false)
	var req2GrantedAt float64 = -1
	sched.Spawn(func(p *Process) {
		proc2 := blocking.Submit(sched, req2)
		p.AwaitAll([]*Process{proc2})
		req2GrantedAt = sched.Now()
	})

	// WHEN the simulation runs to completion
	if err := sched.Run(100); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// THEN the second request only completes after the first fully
	// releases its software thread at t=3 (process_duration(3) on a
	// max_concurrency=1, speed=1 server), so req2 completes strictly after
	// req1's outer completion time
	req1CompletedAt, _ := req.At("completed")
	if req1CompletedAt != 3 {
		t.Errorf("req1 completed at %v, want 3", req1CompletedAt)
	}
	if req2GrantedAt < 3 {
		t.Errorf("req2 resumed at %v, want >= 3 (after req1 released its software thread)", req2GrantedAt)
	}
}

func TestBlockingRequester_OutValPropagatesFromInner(t *testing.T) {
	sched := NewScheduler()
	srv := mustServer(t, sched, "db", 1, 1, 1.0)
	inner := &CoreRequester{
		Name: "query", CompUnitsGen: fixedGen(1), Picker: singleServerPicker(srv),
		F: func(in interface{}) interface{} { return "rows" },
	}
	blocking := &BlockingRequester{Name: "txn", Inner: inner, Picker: singleServerPicker(srv)}

	req := blocking.MakeRequest(nil, nil, false)
	blocking.Submit(sched, req)
	if err := sched.Run(100); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if req.OutVal != "rows" {
		t.Errorf("OutVal = %v, want %q", req.OutVal, "rows")
	}
}

func TestSeqRequester_ThreadsOutputIntoNextInput(t *testing.T) {
	// GIVEN a two-step Seq where each step increments an int
	sched := NewScheduler()
	srv := mustServer(t, sched, "web", 1, 1, 1.0)
	inc := func(name string) *CoreRequester {
		return &CoreRequester{
			Name: name, CompUnitsGen: fixedGen(1), Picker: singleServerPicker(srv),
			F: func(in interface{}) interface{} { return in.(int) + 1 },
		}
	}
	seq := &SeqRequester{Name: "pipeline", Reqs: []SvcRequester{inc("a"), inc("b")}}

	req := seq.MakeRequest(0, nil, false)
	seq.Submit(sched, req)
	if err := sched.Run(100); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// THEN the final output reflects both increments applied in order
	if req.OutVal != 2 {
		t.Errorf("OutVal = %v, want 2", req.OutVal)
	}
}

func TestSeqRequester_StepsRunStrictlyInOrder(t *testing.T) {
	sched := NewScheduler()
	srv := mustServer(t, sched, "web", 1, 1, 1.0)
	var order []string
	step := func(name string, units float64) *CoreRequester {
		return &CoreRequester{
			Name: name, CompUnitsGen: fixedGen(units), Picker: singleServerPicker(srv),
			F: func(in interface{}) interface{} { order = append(order, name); return in },
		}
	}
	seq := &SeqRequester{Name: "pipeline", Reqs: []SvcRequester{step("first", 1), step("second", 1), step("third", 1)}}

	req := seq.MakeRequest(nil, nil, false)
	seq.Submit(sched, req)
	if err := sched.Run(100); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order = %v, want %v", order, want)
		}
	}
}

func TestParRequester_RunsAllConcurrentlyAndCompletesAtSlowest(t *testing.T) {
	// GIVEN three Core sub-requesters with different durations, each on its
	// own dedicated server so they don't contend
	sched := NewScheduler()
	fast := mustServer(t, sched, "fast", 1, 1, 1.0)
	mid := mustServer(t, sched, "mid", 1, 1, 1.0)
	slow := mustServer(t, sched, "slow", 1, 1, 1.0)

	par := &ParRequester{
		Name: "fanout",
		Reqs: []SvcRequester{
			&CoreRequester{Name: "a", CompUnitsGen: fixedGen(1), Picker: singleServerPicker(fast)},
			&CoreRequester{Name: "b", CompUnitsGen: fixedGen(3), Picker: singleServerPicker(mid)},
			&CoreRequester{Name: "c", CompUnitsGen: fixedGen(5), Picker: singleServerPicker(slow)},
		},
		Reducer: func(outVals []interface{}) interface{} { return len(outVals) },
	}

	req := par.MakeRequest(nil, nil, false)
	par.Submit(sched, req)
	if err := sched.Run(100); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// THEN the composite completes at the slowest sub-request's duration (5)
	completedAt, _ := req.At("completed")
	if completedAt != 5 {
		t.Errorf("completedAt = %v, want 5", completedAt)
	}
	if req.OutVal != 3 {
		t.Errorf("OutVal = %v, want 3 (reducer over 3 sub-results)", req.OutVal)
	}
}

func TestParRequester_NilReducer_OutputsNil(t *testing.T) {
	sched := NewScheduler()
	srv := mustServer(t, sched, "web", 2, 2, 1.0)
	par := &ParRequester{
		Name: "fanout",
		Reqs: []SvcRequester{
			&CoreRequester{Name: "a", CompUnitsGen: fixedGen(1), Picker: singleServerPicker(srv)},
			&CoreRequester{Name: "b", CompUnitsGen: fixedGen(1), Picker: singleServerPicker(srv)},
		},
	}
	req := par.MakeRequest(nil, nil, false)
	par.Submit(sched, req)
	if err := sched.Run(100); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if req.OutVal != nil {
		t.Errorf("OutVal = %v, want nil", req.OutVal)
	}
}

func TestParRequester_Cont_PinsSubRequestsToSingleServer(t *testing.T) {
	// GIVEN a Par with Cont=true, whose sub-requesters would each pick a
	// different server if run independently
	sched := NewScheduler()
	srvA := mustServer(t, sched, "a", 2, 2, 1.0)
	srvB := mustServer(t, sched, "b", 2, 2, 1.0)

	par := &ParRequester{
		Name: "fanout",
		Cont: true,
		Reqs: []SvcRequester{
			&CoreRequester{Name: "x", CompUnitsGen: fixedGen(1), Picker: singleServerPicker(srvA)},
			&CoreRequester{Name: "y", CompUnitsGen: fixedGen(1), Picker: singleServerPicker(srvB)},
		},
	}

	req := par.MakeRequest(nil, nil, false)

	// THEN every sub-request (and the Par request itself) ends up pinned to
	// the first sub's server, regardless of what each leaf's own picker
	// would otherwise have chosen
	subs := req.aux.([]*SvcRequest)
	for i, sub := range subs {
		if sub.Server != srvA {
			t.Errorf("sub %d server = %v, want %v (pinned via Cont)", i, sub.Server, srvA)
		}
	}
	if req.Server != srvA {
		t.Errorf("req.Server = %v, want %v", req.Server, srvA)
	}
}

func ExampleCoreRequester_processDuration() {
	sched := NewScheduler()
	srv, _ := NewServer(sched, "web", 2, 2, 2.0)
	fmt.Println(srv.ProcessDuration(4))
	// Output: 4
}
