package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible simulation run.
// Two simulations with the same SimulationKey and identical configuration
// MUST produce bit-for-bit identical results, per spec.md §5's
// determinism requirement.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// === Subsystem Constants ===

const (
	// SubsystemThinkTime is the RNG subsystem seeded with the master seed
	// directly, for backward compatibility with single-stream
	// configurations. UserGroup think time does not draw from it: each
	// user draws from its own SubsystemInstance(userIndex) stream.
	SubsystemThinkTime = "think_time"

	// SubsystemRequesterChoice is the RNG subsystem for a UserGroup's
	// weighted selection among its requesters.
	SubsystemRequesterChoice = "requester_choice"

	// SubsystemCompUnits is the RNG subsystem for Core requesters'
	// comp_units_gen sampling.
	SubsystemCompUnits = "comp_units"

	// SubsystemLoadBalancer is the RNG subsystem for load balancer
	// policies that need randomness (e.g. weighted-random picking).
	SubsystemLoadBalancer = "load_balancer"
)

// SubsystemInstance returns an isolated subsystem name for user index id,
// letting each simulated user draw from its own deterministic stream
// regardless of dispatch order.
func SubsystemInstance(id int) string {
	return fmt.Sprintf("instance_%d", id)
}

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated RNG instances per
// subsystem, so that e.g. adding a load-balancer policy that consumes
// randomness never perturbs the sequence UserGroup think-time sampling
// draws, even with a shared master seed.
//
// Derivation formula:
//   - For SubsystemThinkTime: uses masterSeed directly (backward
//     compatibility with simple single-stream scenarios)
//   - For all other subsystems: masterSeed XOR fnv1a64(subsystemName)
//
// Thread-safety: NOT thread-safe. The scheduler is single-threaded, so
// every draw happens on the one goroutine holding the token of execution.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named
// subsystem. The same subsystem name always returns the same *rand.Rand
// instance (cached). Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}

	var derivedSeed int64
	if name == SubsystemThinkTime {
		derivedSeed = int64(p.key)
	} else {
		derivedSeed = int64(p.key) ^ fnv1a64(name)
	}

	rng := rand.New(rand.NewSource(derivedSeed))
	p.subsystems[name] = rng
	return rng
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}

// === RNG port ===

// RNG is the injected randomness port spec.md §6 names: uniform sampling
// (UniformFloat on [a,b), UniformInt on [a,b]) and random() on [0,1).
// Weighted choice is the separate WeightedChoice function built on it.
type RNG interface {
	UniformFloat(a, b float64) float64
	UniformInt(a, b int) int
	Float64() float64
}

// StdRNG adapts a *rand.Rand (typically one partition of a
// PartitionedRNG) to the RNG port.
type StdRNG struct {
	R *rand.Rand
}

var _ RNG = StdRNG{}

// UniformFloat returns a value uniformly distributed on [a, b).
func (s StdRNG) UniformFloat(a, b float64) float64 {
	if a >= b {
		return a
	}
	return a + s.R.Float64()*(b-a)
}

// UniformInt returns an integer uniformly distributed on [a, b]
// (inclusive of both ends), matching original_source/randutil.py's
// rand_int.
func (s StdRNG) UniformInt(a, b int) int {
	if a >= b {
		return a
	}
	return a + s.R.Intn(b-a+1)
}

// Float64 returns a value uniformly distributed on [0, 1).
func (s StdRNG) Float64() float64 {
	return s.R.Float64()
}

// WeightedChoice picks an index into cumWeights (a strictly increasing
// sequence of cumulative weights ending at the total weight) by drawing
// rng.Float64()*total and finding the first threshold it falls under.
// Grounded on original_source/serversim/randutil.py's prob_chooser: the
// original partitions [0, total) into contiguous bands, one per
// candidate, sized proportionally to its weight.
func WeightedChoice(rng RNG, cumWeights []float64) int {
	if len(cumWeights) == 0 {
		return -1
	}
	total := cumWeights[len(cumWeights)-1]
	draw := rng.Float64() * total
	for i, c := range cumWeights {
		if draw < c {
			return i
		}
	}
	return len(cumWeights) - 1
}
