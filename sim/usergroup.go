// sim/usergroup.go
package sim

import (
	"fmt"
	"math"
	"sort"
)

// UserStep is one entry of a UserGroup's num_users step function: from
// time Start (inclusive) until the next step's Start (exclusive), exactly
// Count user indices are active.
type UserStep struct {
	Start float64
	Count int
}

// WeightedRequester pairs a SvcRequester with its selection weight for a
// UserGroup's weighted sampling.
type WeightedRequester struct {
	Name      string
	Requester SvcRequester
	Weight    float64
}

// responseTally accumulates response-time samples for Stats-style queries
// by retaining every raw sample, so memory grows with the number of
// responses: it keeps the full sample slice (spec.md's Stats port is
// injected per-sink; this in-package tally is the minimal data the
// UserGroup itself must keep to answer avg/stddev/min/max/quantiles
// directly, matching original_source/serversim/usergroup.py's
// _tally_dict of raw sample lists).
type responseTally struct {
	samples []float64
}

func (t *responseTally) add(x float64) { t.samples = append(t.samples, x) }

func (t *responseTally) count() int { return len(t.samples) }

func (t *responseTally) avg() (float64, error) {
	if len(t.samples) == 0 {
		return 0, errProbeNotReady("ResponseTally", "Avg", "no samples")
	}
	var sum float64
	for _, x := range t.samples {
		sum += x
	}
	return sum / float64(len(t.samples)), nil
}

func (t *responseTally) stdDev() (float64, error) {
	if len(t.samples) == 0 {
		return 0, errProbeNotReady("ResponseTally", "StdDev", "no samples")
	}
	mean, _ := t.avg()
	var sumSq float64
	for _, x := range t.samples {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(t.samples))), nil
}

func (t *responseTally) min() (float64, error) {
	if len(t.samples) == 0 {
		return 0, errProbeNotReady("ResponseTally", "Min", "no samples")
	}
	m := t.samples[0]
	for _, x := range t.samples[1:] {
		if x < m {
			m = x
		}
	}
	return m, nil
}

func (t *responseTally) max() (float64, error) {
	if len(t.samples) == 0 {
		return 0, errProbeNotReady("ResponseTally", "Max", "no samples")
	}
	m := t.samples[0]
	for _, x := range t.samples[1:] {
		if x > m {
			m = x
		}
	}
	return m, nil
}

// quantiles returns the linear-interpolated sample quantile for each q in
// qs (each in [0,1]), after sorting a defensive copy of the samples.
func (t *responseTally) quantiles(qs []float64) (map[float64]float64, error) {
	if len(t.samples) == 0 {
		return nil, errProbeNotReady("ResponseTally", "Quantiles", "no samples")
	}
	sorted := make([]float64, len(t.samples))
	copy(sorted, t.samples)
	sort.Float64s(sorted)

	out := make(map[float64]float64, len(qs))
	n := len(sorted)
	for _, q := range qs {
		if n == 1 {
			out[q] = sorted[0]
			continue
		}
		pos := q * float64(n-1)
		lo := int(math.Floor(pos))
		hi := int(math.Ceil(pos))
		if lo == hi {
			out[q] = sorted[lo]
			continue
		}
		frac := pos - float64(lo)
		out[q] = sorted[lo]*(1-frac) + sorted[hi]*frac
	}
	return out, nil
}

// UserGroup drives a simulated user population against a weighted set of
// requesters on a step-function population curve. Grounded on
// original_source/serversim/usergroup.py.
type UserGroup struct {
	Name      string
	steps     []UserStep
	requesters []WeightedRequester
	cumWeights []float64
	minThink  float64
	maxThink  float64
	quantiles []float64

	sched *Scheduler
	rng   *PartitionedRNG

	overall      responseTally
	perRequester map[string]*responseTally
	dispatched   uint64

	// Log, if non-nil, receives every manufactured SvcRequest tagged with
	// this UserGroup's name, for post-hoc inspection (spec.md §6
	// "Optional logs").
	Log []*SvcRequest
}

// NewUserGroup validates and constructs a UserGroup. numUsers is either a
// non-negative integer (lifted internally to [(0, n)]) or a non-empty,
// zero-starting, strictly-increasing-in-time step sequence.
func NewUserGroup(
	sched *Scheduler,
	rng *PartitionedRNG,
	name string,
	numUsers interface{},
	requesters []WeightedRequester,
	minThink, maxThink float64,
	quantiles []float64,
) (*UserGroup, error) {
	steps, err := canonicalizeNumUsers(numUsers)
	if err != nil {
		return nil, err
	}
	if len(requesters) == 0 {
		return nil, &ConstructionError{Component: "UserGroup", Reason: "requesters must be non-empty"}
	}
	cumWeights := make([]float64, len(requesters))
	var running float64
	for i, wr := range requesters {
		if wr.Weight <= 0 {
			return nil, &ConstructionError{Component: "UserGroup", Reason: fmt.Sprintf("requester %q has non-positive weight %v", wr.Name, wr.Weight)}
		}
		running += wr.Weight
		cumWeights[i] = running
	}
	if minThink > maxThink {
		return nil, &ConstructionError{Component: "UserGroup", Reason: fmt.Sprintf("min_think %v > max_think %v", minThink, maxThink)}
	}
	if quantiles == nil {
		quantiles = []float64{0.5, 0.95, 0.99}
	}

	perRequester := make(map[string]*responseTally, len(requesters))
	for _, wr := range requesters {
		perRequester[wr.Name] = &responseTally{}
	}

	return &UserGroup{
		Name:         name,
		steps:        steps,
		requesters:   requesters,
		cumWeights:   cumWeights,
		minThink:     minThink,
		maxThink:     maxThink,
		quantiles:    quantiles,
		sched:        sched,
		rng:          rng,
		perRequester: perRequester,
	}, nil
}

// canonicalizeNumUsers accepts either a non-negative int or a []UserStep and
// returns the canonical step sequence, validating a zero-starting,
// strictly-increasing step sequence.
func canonicalizeNumUsers(numUsers interface{}) ([]UserStep, error) {
	switch v := numUsers.(type) {
	case int:
		if v < 0 {
			return nil, &ConstructionError{Component: "UserGroup", Reason: fmt.Sprintf("num_users must be >= 0, got %d", v)}
		}
		return []UserStep{{Start: 0, Count: v}}, nil
	case []UserStep:
		if len(v) == 0 {
			return nil, &ConstructionError{Component: "UserGroup", Reason: "num_users step sequence must be non-empty"}
		}
		if v[0].Start != 0 {
			return nil, &ConstructionError{Component: "UserGroup", Reason: "num_users step sequence must start at time 0"}
		}
		for i := 1; i < len(v); i++ {
			if v[i].Start <= v[i-1].Start {
				return nil, &ConstructionError{Component: "UserGroup", Reason: "num_users step times must be strictly increasing"}
			}
		}
		for _, s := range v {
			if s.Count < 0 {
				return nil, &ConstructionError{Component: "UserGroup", Reason: fmt.Sprintf("num_users step count must be >= 0, got %d", s.Count)}
			}
		}
		out := make([]UserStep, len(v))
		copy(out, v)
		return out, nil
	default:
		return nil, &ConstructionError{Component: "UserGroup", Reason: "num_users must be an int or a []UserStep"}
	}
}

// maxUsers returns max(count) across every step, the number of user
// processes ActivateUsers spawns.
func (g *UserGroup) maxUsers() int {
	m := 0
	for _, s := range g.steps {
		if s.Count > m {
			m = s.Count
		}
	}
	return m
}

// stepAt returns the active-user count at virtual time t, and the start
// time of the following step (or +Inf if t falls in the last step).
func (g *UserGroup) stepAt(t float64) (count int, nextStart float64) {
	nextStart = math.Inf(1)
	for i, s := range g.steps {
		if t < s.Start {
			break
		}
		count = s.Count
		if i+1 < len(g.steps) {
			nextStart = g.steps[i+1].Start
		} else {
			nextStart = math.Inf(1)
		}
	}
	return count, nextStart
}

// ActivateUsers spawns max(count) user-loop processes, indexed 0..max-1.
// Each loops until the scheduler stops dispatching it at the simulation
// horizon, except that a user whose index is not below the last step's
// count returns once that last step is reached.
func (g *UserGroup) ActivateUsers() {
	n := g.maxUsers()
	for i := 0; i < n; i++ {
		idx := i
		g.sched.Spawn(func(p *Process) { g.userLoop(p, idx) })
	}
}

func (g *UserGroup) userLoop(p *Process, userIndex int) {
	thinkRNG := StdRNG{R: g.rng.ForSubsystem(SubsystemInstance(userIndex))}
	choiceRNG := StdRNG{R: g.rng.ForSubsystem(SubsystemRequesterChoice)}

	for {
		now := g.sched.Now()
		count, nextStart := g.stepAt(now)
		if userIndex >= count {
			if math.IsInf(nextStart, 1) {
				return
			}
			p.Sleep(nextStart - now)
			continue
		}

		think := thinkRNG.UniformFloat(g.minThink, g.maxThink)
		p.Sleep(think)

		idx := WeightedChoice(choiceRNG, g.cumWeights)
		wr := g.requesters[idx]

		start := g.sched.Now()
		req := wr.Requester.MakeRequest(nil, nil, false)
		g.dispatched++
		if g.Log != nil {
			g.Log = append(g.Log, req)
		}

		proc := wr.Requester.Submit(g.sched, req)
		p.AwaitAll([]*Process{proc})

		if req.IsCompleted() {
			elapsed := g.sched.Now() - start
			g.overall.add(elapsed)
			g.perRequester[wr.Name].add(elapsed)
		}
	}
}

// AvgResponseTime returns the mean response time, overall if svc == "" or
// for the named requester otherwise.
func (g *UserGroup) AvgResponseTime(svc string) (float64, error) {
	return g.tallyFor(svc).avg()
}

// StdDevResponseTime returns the population standard deviation (divisor
// n) of response times, overall or for one requester.
func (g *UserGroup) StdDevResponseTime(svc string) (float64, error) {
	return g.tallyFor(svc).stdDev()
}

// MinResponseTime returns the minimum observed response time.
func (g *UserGroup) MinResponseTime(svc string) (float64, error) {
	return g.tallyFor(svc).min()
}

// MaxResponseTime returns the maximum observed response time.
func (g *UserGroup) MaxResponseTime(svc string) (float64, error) {
	return g.tallyFor(svc).max()
}

// ResponseTimeQuantiles returns the configured (or caller-supplied)
// quantiles of the observed response times.
func (g *UserGroup) ResponseTimeQuantiles(svc string, qs []float64) (map[float64]float64, error) {
	if qs == nil {
		qs = g.quantiles
	}
	return g.tallyFor(svc).quantiles(qs)
}

// RespondedRequestCount returns the number of requests that completed.
func (g *UserGroup) RespondedRequestCount(svc string) int {
	return g.tallyFor(svc).count()
}

// UnrespondedRequestCount returns dispatched - responded, overall only
// (per-requester dispatch counts are not separately tracked, mirroring
// original_source/serversim/usergroup.py which reports this figure at the
// group level).
func (g *UserGroup) UnrespondedRequestCount() uint64 {
	return g.dispatched - uint64(g.overall.count())
}

// Throughput returns responded / now, overall.
func (g *UserGroup) Throughput() (float64, error) {
	now := g.sched.Now()
	if now == 0 {
		return 0, errProbeNotReady(g.Name, "Throughput", "now == 0")
	}
	return float64(g.overall.count()) / now, nil
}

var emptyTally = &responseTally{}

// tallyFor returns the tally for svc, or an always-empty tally if svc
// names no requester in this group (never nil, so callers can't panic on
// an unrecognized name).
func (g *UserGroup) tallyFor(svc string) *responseTally {
	if svc == "" {
		return &g.overall
	}
	if t, ok := g.perRequester[svc]; ok {
		return t
	}
	return emptyTally
}
