// Package loadbalancer provides sim.ServerPicker implementations: pure
// functions from a service name to the Server that should process it,
// injected into the SvcRequester algebra's Core and Blocking combinators
// per spec.md §6. Grounded on the teacher's sim.LoadBalancer interface
// shape (a single GetReplica-style lookup method), generalized from
// picking a batch replica to picking a Server by service name.
package loadbalancer

import (
	"sync"
	"sync/atomic"

	"github.com/deploysim/serversim/sim"
)

// Picker is the concrete interface every implementation in this package
// satisfies; sim.ServerPicker is the narrower func type the core engine
// actually consumes.
type Picker interface {
	Pick(svcName string) *sim.Server
	AsServerPicker() sim.ServerPicker
}

// RoundRobin cycles through a fixed fleet of servers in order, ignoring
// svcName. Safe for concurrent use, though the scheduler never calls it
// from more than one goroutine at a time.
type RoundRobin struct {
	servers []*sim.Server
	next    uint64
}

// NewRoundRobin constructs a RoundRobin over servers. servers must be
// non-empty.
func NewRoundRobin(servers []*sim.Server) *RoundRobin {
	return &RoundRobin{servers: servers}
}

func (r *RoundRobin) Pick(_ string) *sim.Server {
	i := atomic.AddUint64(&r.next, 1) - 1
	return r.servers[i%uint64(len(r.servers))]
}

func (r *RoundRobin) AsServerPicker() sim.ServerPicker { return r.Pick }

// Random picks uniformly among a fixed fleet via an injected RNG
// subsystem, so routing choices stay reproducible under a seed.
type Random struct {
	mu      sync.Mutex
	servers []*sim.Server
	rng     sim.RNG
}

// NewRandom constructs a Random picker drawing from rng (typically
// rng.ForSubsystem(sim.SubsystemLoadBalancer) wrapped as sim.StdRNG).
func NewRandom(servers []*sim.Server, rng sim.RNG) *Random {
	return &Random{servers: servers, rng: rng}
}

func (r *Random) Pick(_ string) *sim.Server {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.rng.UniformInt(0, len(r.servers)-1)
	return r.servers[idx]
}

func (r *Random) AsServerPicker() sim.ServerPicker { return r.Pick }

// ByName routes each service name to a single, fixed server — the common
// case where a Core's server_picker is really just "the one server that
// hosts this service."
type ByName struct {
	servers map[string]*sim.Server
}

// NewByName constructs a ByName picker from a svcName -> Server mapping.
func NewByName(servers map[string]*sim.Server) *ByName {
	return &ByName{servers: servers}
}

func (b *ByName) Pick(svcName string) *sim.Server {
	return b.servers[svcName]
}

func (b *ByName) AsServerPicker() sim.ServerPicker { return b.Pick }
