package trace

import "github.com/deploysim/serversim/sim"

// TraceLevel controls the verbosity of simulation tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelRequests records the submitted-request log only.
	TraceLevelRequests TraceLevel = "requests"
	// TraceLevelFull records both the request log and every resource
	// acquisition.
	TraceLevelFull TraceLevel = "full"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:     true,
	TraceLevelRequests: true,
	TraceLevelFull:     true,
	"":                 true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a
// recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects request and resource-acquisition records
// during a run. It implements sim.AcquisitionRecorder, so a Server can be
// wired directly to one via Server.SetAcquisitionRecorder.
type SimulationTrace struct {
	Config       TraceConfig
	Requests     []RequestRecord
	Acquisitions []AcquisitionRecord
}

var _ sim.AcquisitionRecorder = (*SimulationTrace)(nil)

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:       config,
		Requests:     make([]RequestRecord, 0),
		Acquisitions: make([]AcquisitionRecord, 0),
	}
}

// RecordRequest appends a request record. A no-op at TraceLevelNone (or
// the empty level, which defaults to none).
func (st *SimulationTrace) RecordRequest(record RequestRecord) {
	if st.Config.Level == TraceLevelNone || st.Config.Level == "" {
		return
	}
	st.Requests = append(st.Requests, record)
}

// RecordAcquisition implements sim.AcquisitionRecorder. A no-op unless the
// trace level is TraceLevelFull.
func (st *SimulationTrace) RecordAcquisition(kind, serverName string, req *sim.SvcRequest, at float64) {
	if st.Config.Level != TraceLevelFull {
		return
	}
	st.Acquisitions = append(st.Acquisitions, AcquisitionRecord{
		Kind:       kind,
		ServerName: serverName,
		RequestID:  req.ID,
		Time:       at,
	})
}
