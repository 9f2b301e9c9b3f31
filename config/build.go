package config

import (
	"fmt"

	"github.com/deploysim/serversim/loadbalancer"
	"github.com/deploysim/serversim/sim"
	"github.com/deploysim/serversim/sim/trace"
)

// Built is the live object graph a Scenario compiles to: a Scheduler,
// every named Server, every UserGroup, and (if tracing is enabled) the
// SimulationTrace attached to each Server as its AcquisitionRecorder.
type Built struct {
	Scheduler *sim.Scheduler
	Servers   map[string]*sim.Server
	Groups    []*sim.UserGroup
	RNG       *sim.PartitionedRNG
	Trace     *trace.SimulationTrace
}

// Build compiles sc into a live, runnable object graph. traceLevel
// controls how much detail the attached trace.SimulationTrace records;
// pass trace.TraceLevelNone to disable tracing overhead entirely.
func (sc *Scenario) Build(traceLevel trace.TraceLevel) (*Built, error) {
	sched := sim.NewScheduler()
	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(sc.Seed))
	tr := trace.NewSimulationTrace(trace.TraceConfig{Level: traceLevel})

	servers := make(map[string]*sim.Server, len(sc.Servers))
	fleets := make(map[string][]*sim.Server)
	for _, spec := range sc.Servers {
		srv, err := sim.NewServer(sched, spec.Name, spec.MaxConcurrency, spec.NumThreads, spec.Speed)
		if err != nil {
			return nil, err
		}
		srv.SetAcquisitionRecorder(tr)
		servers[spec.Name] = srv

		service := spec.Service
		if service == "" {
			service = spec.Name
		}
		fleets[service] = append(fleets[service], srv)
	}

	pickers := make(map[string]loadbalancer.Picker, len(fleets))
	for service, fleet := range fleets {
		picker, err := sc.newPicker(service, fleet, rng)
		if err != nil {
			return nil, err
		}
		pickers[service] = picker
	}

	b := &builder{
		sc:       sc,
		pickers:  pickers,
		built:    make(map[string]sim.SvcRequester, len(sc.Requesters)),
		building: make(map[string]bool, len(sc.Requesters)),
		specs:    make(map[string]*RequesterSpec, len(sc.Requesters)),
		rng:      rng,
	}
	for i := range sc.Requesters {
		b.specs[sc.Requesters[i].Name] = &sc.Requesters[i]
	}

	groups := make([]*sim.UserGroup, 0, len(sc.UserGroups))
	for _, gs := range sc.UserGroups {
		wr := make([]sim.WeightedRequester, 0, len(gs.Requesters))
		for _, ref := range gs.Requesters {
			req, err := b.resolve(ref.Name)
			if err != nil {
				return nil, err
			}
			wr = append(wr, sim.WeightedRequester{Name: ref.Name, Requester: req, Weight: ref.Weight})
		}

		var numUsers interface{} = gs.NumUsers
		if len(gs.NumUsersSteps) > 0 {
			steps := make([]sim.UserStep, len(gs.NumUsersSteps))
			for i, s := range gs.NumUsersSteps {
				steps[i] = sim.UserStep{Start: s.Start, Count: s.Count}
			}
			numUsers = steps
		}

		group, err := sim.NewUserGroup(sched, rng, gs.Name, numUsers, wr, gs.MinThink, gs.MaxThink, gs.Quantiles)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}

	return &Built{Scheduler: sched, Servers: servers, Groups: groups, RNG: rng, Trace: tr}, nil
}

// newPicker constructs the loadbalancer.Picker a fleet routes through,
// per Scenario.LoadBalancerPolicy (default "byname"). The "byname" policy
// only makes sense for a single-server service: it routes service to the
// one server of that name, so a multi-server fleet under "byname" is a
// configuration error rather than an arbitrary pick.
func (sc *Scenario) newPicker(service string, fleet []*sim.Server, rng *sim.PartitionedRNG) (loadbalancer.Picker, error) {
	switch sc.LoadBalancerPolicy {
	case "round_robin":
		return loadbalancer.NewRoundRobin(fleet), nil
	case "random":
		return loadbalancer.NewRandom(fleet, sim.StdRNG{R: rng.ForSubsystem(sim.SubsystemLoadBalancer)}), nil
	case "rendezvous":
		return loadbalancer.NewRendezvous(fleet), nil
	default:
		if len(fleet) != 1 {
			return nil, &sim.ConstructionError{Component: "Scenario", Reason: fmt.Sprintf("service %q has %d servers but load_balancer_policy \"byname\" requires exactly 1; set load_balancer_policy to round_robin, random, or rendezvous", service, len(fleet))}
		}
		return loadbalancer.NewByName(map[string]*sim.Server{service: fleet[0]}), nil
	}
}

// builder resolves RequesterSpecs into live sim.SvcRequester trees,
// memoizing each name so a spec referenced from multiple seq/par parents
// is only constructed once, and detecting reference cycles.
type builder struct {
	sc       *Scenario
	pickers  map[string]loadbalancer.Picker
	built    map[string]sim.SvcRequester
	building map[string]bool
	specs    map[string]*RequesterSpec
	rng      *sim.PartitionedRNG
}

func (b *builder) resolve(name string) (sim.SvcRequester, error) {
	if r, ok := b.built[name]; ok {
		return r, nil
	}
	if b.building[name] {
		return nil, &sim.ConstructionError{Component: "Scenario", Reason: fmt.Sprintf("requester %q participates in a reference cycle", name)}
	}
	spec, ok := b.specs[name]
	if !ok {
		return nil, &sim.ConstructionError{Component: "Scenario", Reason: fmt.Sprintf("unknown requester %q", name)}
	}

	b.building[name] = true
	r, err := b.build(spec)
	delete(b.building, name)
	if err != nil {
		return nil, err
	}
	b.built[name] = r
	return r, nil
}

func (b *builder) build(spec *RequesterSpec) (sim.SvcRequester, error) {
	switch spec.Type {
	case "core":
		picker, err := b.pickerFor(spec.Name, spec.Server)
		if err != nil {
			return nil, err
		}
		return &sim.CoreRequester{
			Name:         spec.Name,
			CompUnitsGen: b.compUnitsGen(spec),
			Picker:       picker,
		}, nil

	case "async":
		inner, err := b.resolve(spec.Reqs[0])
		if err != nil {
			return nil, err
		}
		return &sim.AsyncRequester{Name: spec.Name, Inner: inner}, nil

	case "blocking":
		inner, err := b.resolve(spec.Reqs[0])
		if err != nil {
			return nil, err
		}
		picker, err := b.pickerFor(spec.Name, spec.Server)
		if err != nil {
			return nil, err
		}
		return &sim.BlockingRequester{Name: spec.Name, Inner: inner, Picker: picker}, nil

	case "seq":
		reqs, err := b.resolveAll(spec.Reqs)
		if err != nil {
			return nil, err
		}
		return &sim.SeqRequester{Name: spec.Name, Reqs: reqs, Cont: spec.Cont}, nil

	case "par":
		reqs, err := b.resolveAll(spec.Reqs)
		if err != nil {
			return nil, err
		}
		return &sim.ParRequester{Name: spec.Name, Reqs: reqs, Cont: spec.Cont}, nil

	default:
		return nil, &sim.ConstructionError{Component: "Scenario", Reason: fmt.Sprintf("requester %q: unknown type %q", spec.Name, spec.Type)}
	}
}

func (b *builder) resolveAll(names []string) ([]sim.SvcRequester, error) {
	out := make([]sim.SvcRequester, len(names))
	for i, n := range names {
		r, err := b.resolve(n)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// pickerFor binds a RequesterSpec to the fleet its Server field names,
// ignoring the svcName argument ServerPicker carries: the fleet is
// already resolved at scenario-build time, so every invocation of the
// returned picker necessarily means "give me a server from this fleet".
func (b *builder) pickerFor(reqName, service string) (sim.ServerPicker, error) {
	picker, ok := b.pickers[service]
	if !ok {
		return nil, &sim.ConstructionError{Component: "Scenario", Reason: fmt.Sprintf("requester %q: no server or service named %q", reqName, service)}
	}
	return func(_ string) *sim.Server { return picker.Pick(service) }, nil
}

// compUnitsGen builds the CompUnitsGen a Core requester draws from:
// a fixed value, or a uniform draw on [min, max) from the shared
// sim.SubsystemCompUnits RNG partition.
func (b *builder) compUnitsGen(spec *RequesterSpec) sim.CompUnitsGen {
	if spec.CompUnits != nil && spec.CompUnits.Fixed != nil {
		fixed := *spec.CompUnits.Fixed
		return func() float64 { return fixed }
	}
	min, max := 1.0, 1.0
	if spec.CompUnits != nil {
		min, max = spec.CompUnits.Min, spec.CompUnits.Max
	}
	rng := sim.StdRNG{R: b.rng.ForSubsystem(sim.SubsystemCompUnits)}
	return func() float64 { return rng.UniformFloat(min, max) }
}
