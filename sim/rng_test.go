package sim

import (
	"math"
	"math/rand"
	"testing"
)

// === SimulationKey Tests ===

func TestSimulationKey_Creation(t *testing.T) {
	tests := []struct {
		name string
		seed int64
	}{
		{"positive seed", 42},
		{"zero seed", 0},
		{"negative seed", -1},
		{"max int64", math.MaxInt64},
		{"min int64", math.MinInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := NewSimulationKey(tt.seed)
			if int64(key) != tt.seed {
				t.Errorf("NewSimulationKey(%d) = %d, want %d", tt.seed, key, tt.seed)
			}
		})
	}
}

// === PartitionedRNG Tests ===

func TestPartitionedRNG_DeterministicDerivation(t *testing.T) {
	// GIVEN two PartitionedRNGs built from the same key
	rng1 := NewPartitionedRNG(NewSimulationKey(42))
	rng2 := NewPartitionedRNG(NewSimulationKey(42))

	// WHEN drawing 3 values from the requester-choice subsystem of each
	vals1 := make([]float64, 3)
	vals2 := make([]float64, 3)

	for i := 0; i < 3; i++ {
		vals1[i] = rng1.ForSubsystem(SubsystemRequesterChoice).Float64()
	}
	for i := 0; i < 3; i++ {
		vals2[i] = rng2.ForSubsystem(SubsystemRequesterChoice).Float64()
	}

	// THEN the sequences are identical
	for i := 0; i < 3; i++ {
		if vals1[i] != vals2[i] {
			t.Errorf("Value %d: got %v and %v, want identical", i, vals1[i], vals2[i])
		}
	}
}

func TestPartitionedRNG_SubsystemIsolation(t *testing.T) {
	// GIVEN two independently-seeded PartitionedRNGs with the same key
	rngA := NewPartitionedRNG(NewSimulationKey(42))
	rngB := NewPartitionedRNG(NewSimulationKey(42))

	// WHEN A draws 10 values from think_time (should not affect requester_choice)
	for i := 0; i < 10; i++ {
		rngA.ForSubsystem(SubsystemThinkTime).Float64()
	}

	// AND B draws 5 values from requester_choice
	for i := 0; i < 5; i++ {
		rngB.ForSubsystem(SubsystemRequesterChoice).Float64()
	}

	aChoiceFirst := rngA.ForSubsystem(SubsystemRequesterChoice).Float64()
	bChoiceSixth := rngB.ForSubsystem(SubsystemRequesterChoice).Float64()

	fresh := NewPartitionedRNG(NewSimulationKey(42))
	expectedFirst := fresh.ForSubsystem(SubsystemRequesterChoice).Float64()

	// THEN A's first requester_choice draw matches a fresh stream's first draw
	if aChoiceFirst != expectedFirst {
		t.Errorf("A's requester_choice first value = %v, want %v (isolation broken)", aChoiceFirst, expectedFirst)
	}

	// AND B's 6th draw is not coincidentally equal to the 1st
	if bChoiceSixth == expectedFirst {
		t.Error("B's 6th requester_choice value equals 1st value - unexpected")
	}
}

func TestPartitionedRNG_ThinkTimeBackwardCompat(t *testing.T) {
	// GIVEN a PartitionedRNG and a bare *rand.Rand with the same seed
	seed := int64(42)
	rng := NewPartitionedRNG(NewSimulationKey(seed))

	thinkTimeRNG := rng.ForSubsystem(SubsystemThinkTime)
	directRNG := newRandFromSeed(seed)

	// THEN the think_time subsystem matches the bare RNG bit-for-bit
	for i := 0; i < 10; i++ {
		got := thinkTimeRNG.Float64()
		want := directRNG.Float64()
		if got != want {
			t.Errorf("Value %d: think_time RNG = %v, direct RNG = %v", i, got, want)
		}
	}
}

func TestPartitionedRNG_CachesInstance(t *testing.T) {
	// BDD: Same name returns same *rand.Rand instance
	rng := NewPartitionedRNG(NewSimulationKey(42))

	rng1 := rng.ForSubsystem(SubsystemThinkTime)
	rng2 := rng.ForSubsystem(SubsystemThinkTime)

	if rng1 != rng2 {
		t.Error("ForSubsystem returned different instances for same name")
	}
}

func TestPartitionedRNG_Key(t *testing.T) {
	seed := int64(12345)
	rng := NewPartitionedRNG(NewSimulationKey(seed))

	if rng.Key() != SimulationKey(seed) {
		t.Errorf("Key() = %v, want %v", rng.Key(), seed)
	}
}

func TestPartitionedRNG_EmptySubsystemName(t *testing.T) {
	// BDD: Empty string is valid subsystem name
	rng := NewPartitionedRNG(NewSimulationKey(42))
	result := rng.ForSubsystem("")

	if result == nil {
		t.Error("ForSubsystem(\"\") returned nil")
	}

	rng3 := NewPartitionedRNG(NewSimulationKey(42))
	val2 := rng3.ForSubsystem("").Float64()

	rng4 := NewPartitionedRNG(NewSimulationKey(42))
	val1 := rng4.ForSubsystem("").Float64()

	if val1 != val2 {
		t.Errorf("Empty subsystem not deterministic: %v != %v", val1, val2)
	}
}

func TestPartitionedRNG_ZeroSeed(t *testing.T) {
	// BDD: Seed 0 works correctly
	rng := NewPartitionedRNG(NewSimulationKey(0))

	thinkTime := rng.ForSubsystem(SubsystemThinkTime)
	choice := rng.ForSubsystem(SubsystemRequesterChoice)

	if thinkTime == nil || choice == nil {
		t.Error("ForSubsystem returned nil with zero seed")
	}

	directRNG := newRandFromSeed(0)
	if thinkTime.Float64() != directRNG.Float64() {
		t.Error("think_time with seed 0 not matching direct RNG")
	}
}

func TestPartitionedRNG_NegativeSeed(t *testing.T) {
	// BDD: MinInt64 seed works correctly
	rng := NewPartitionedRNG(NewSimulationKey(math.MinInt64))

	thinkTime := rng.ForSubsystem(SubsystemThinkTime)
	choice := rng.ForSubsystem(SubsystemRequesterChoice)

	if thinkTime == nil || choice == nil {
		t.Error("ForSubsystem returned nil with MinInt64 seed")
	}

	val := thinkTime.Float64()
	if val < 0 || val >= 1 {
		t.Errorf("Float64() returned %v, want [0, 1)", val)
	}
}

func TestPartitionedRNG_LazyInitialization(t *testing.T) {
	// BDD: Subsystems map is empty until ForSubsystem is called
	rng := NewPartitionedRNG(NewSimulationKey(42))

	if len(rng.subsystems) != 0 {
		t.Errorf("New PartitionedRNG has %d subsystems, want 0", len(rng.subsystems))
	}

	rng.ForSubsystem(SubsystemThinkTime)

	if len(rng.subsystems) != 1 {
		t.Errorf("After one ForSubsystem call, have %d subsystems, want 1", len(rng.subsystems))
	}
}

// === fnv1a64 Tests ===

func TestFnv1a64_Deterministic(t *testing.T) {
	input := "test_subsystem"
	hash1 := fnv1a64(input)
	hash2 := fnv1a64(input)

	if hash1 != hash2 {
		t.Errorf("fnv1a64(%q) not deterministic: %v != %v", input, hash1, hash2)
	}
}

func TestFnv1a64_Collision(t *testing.T) {
	names := []string{
		SubsystemThinkTime,
		SubsystemRequesterChoice,
		SubsystemCompUnits,
		"instance_0",
		"instance_1",
		"instance_100",
		"",
	}

	hashes := make(map[int64]string)
	for _, name := range names {
		h := fnv1a64(name)
		if existing, ok := hashes[h]; ok {
			t.Errorf("Hash collision: %q and %q both hash to %d", name, existing, h)
		}
		hashes[h] = name
	}
}

// === SubsystemInstance Tests ===

func TestSubsystemInstance(t *testing.T) {
	tests := []struct {
		id   int
		want string
	}{
		{0, "instance_0"},
		{1, "instance_1"},
		{100, "instance_100"},
		{-1, "instance_-1"},
	}

	for _, tt := range tests {
		got := SubsystemInstance(tt.id)
		if got != tt.want {
			t.Errorf("SubsystemInstance(%d) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

// === WeightedChoice Tests ===

func TestWeightedChoice_PicksWithinBand(t *testing.T) {
	// GIVEN cumulative weights [1, 3, 6] (raw weights 1, 2, 3)
	cum := []float64{1, 3, 6}
	rng := StdRNG{R: newRandFromSeed(7)}

	for i := 0; i < 1000; i++ {
		idx := WeightedChoice(rng, cum)
		if idx < 0 || idx >= len(cum) {
			t.Fatalf("WeightedChoice returned out-of-range index %d", idx)
		}
	}
}

func TestWeightedChoice_Deterministic(t *testing.T) {
	cum := []float64{2, 5, 10}
	rng1 := StdRNG{R: newRandFromSeed(99)}
	rng2 := StdRNG{R: newRandFromSeed(99)}

	for i := 0; i < 50; i++ {
		a := WeightedChoice(rng1, cum)
		b := WeightedChoice(rng2, cum)
		if a != b {
			t.Errorf("draw %d: got %d and %d from identical seeds", i, a, b)
		}
	}
}

// === Benchmark ===

func BenchmarkPartitionedRNG_ForSubsystem_CacheHit(b *testing.B) {
	rng := NewPartitionedRNG(NewSimulationKey(42))
	rng.ForSubsystem(SubsystemThinkTime)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rng.ForSubsystem(SubsystemThinkTime)
	}
}

func BenchmarkPartitionedRNG_ForSubsystem_CacheMiss(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rng := NewPartitionedRNG(NewSimulationKey(42))
		rng.ForSubsystem(SubsystemThinkTime)
	}
}

// === Helper ===

// newRandFromSeed creates a *rand.Rand with the given seed.
func newRandFromSeed(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
