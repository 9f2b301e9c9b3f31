// sim/errors.go
package sim

import "fmt"

// ConstructionError reports an invalid configuration discovered while
// building a simulation object graph (negative capacity, empty server
// name, malformed step function, and similar). It is always fatal to the
// construction call that returns it.
type ConstructionError struct {
	Component string
	Reason    string
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("sim: construction error in %s: %s", e.Component, e.Reason)
}

// ContractViolation reports a programming-level misuse of the simulation
// API that the engine itself cannot recover from: completing an
// already-completed request, submitting a request twice, and similar
// double-transition bugs.
type ContractViolation struct {
	Component string
	Reason    string
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("sim: contract violation in %s: %s", e.Component, e.Reason)
}

// ProbeNotReady reports that a derived metric was queried before it has a
// meaningful value (e.g. before the virtual clock has advanced, or before
// any release has happened). Callers should treat it as "no data yet",
// not as a fatal condition.
type ProbeNotReady struct {
	Component string
	Metric    string
	Reason    string
}

func (e *ProbeNotReady) Error() string {
	return fmt.Sprintf("sim: %s.%s not ready: %s", e.Component, e.Metric, e.Reason)
}

func errProbeNotReady(component, metric, reason string) error {
	return &ProbeNotReady{Component: component, Metric: metric, Reason: reason}
}
