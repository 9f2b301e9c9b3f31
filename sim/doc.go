// Package sim provides the core discrete-event simulation engine: a
// virtual-time scheduler, a service-request algebra for composing
// multi-tier request flows, and the measured-resource queueing
// statistics that fall out of running them.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - clock.go, event.go, scheduler.go: the virtual clock, the
//     (time, sequence)-ordered event queue, and the cooperative
//     single-token Process/Scheduler pair that dispatches it.
//   - resource.go, server.go: MeasuredResource (a bounded-capacity FIFO
//     queue with derived queue/service-time statistics) and Server,
//     which composes one hardware-thread and one software-thread
//     MeasuredResource per deployed service tier.
//   - request.go, requester.go: SvcRequest (the unit of work, with its
//     ordered time_log of labeled virtual timestamps) and the
//     SvcRequester algebra — Core, Async, Blocking, Seq, Par — that
//     produces and runs them.
//   - usergroup.go: a population of simulated users driving requesters
//     on a step-function arrival curve.
//   - rng.go: deterministic, per-subsystem-partitioned randomness.
//
// # Architecture
//
// Routing and reporting live outside this package as injected ports:
//   - loadbalancer/: ServerPicker implementations (round-robin, random,
//     rendezvous-hash).
//   - statsink/: the Stats port spec.md §6 names, backed by a streaming
//     quantile histogram.
//   - sim/trace/: optional decision and resource-acquisition logs.
//
// Determinism: with a fixed seed and fixed topology, two runs produce
// bit-identical events, tallies, and time_log timestamps. The scheduler
// never consults wall-clock time or iterates over an unordered map in
// the simulation path.
package sim
