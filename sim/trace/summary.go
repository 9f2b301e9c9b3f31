package trace

// TraceSummary aggregates statistics from a SimulationTrace for a
// post-run report.
type TraceSummary struct {
	TotalRequests       int
	CompletedCount      int
	UnrespondedCount    int
	UniqueServers       int
	AcquisitionsByKind  map[string]int            // "hw"/"sw" -> count
	AcquisitionsByServer map[string]int           // server name -> count
}

// Summarize computes aggregate statistics from a SimulationTrace. Safe
// for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		AcquisitionsByKind:   make(map[string]int),
		AcquisitionsByServer: make(map[string]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalRequests = len(st.Requests)
	for _, r := range st.Requests {
		if r.Completed {
			summary.CompletedCount++
		} else {
			summary.UnrespondedCount++
		}
	}

	for _, a := range st.Acquisitions {
		summary.AcquisitionsByKind[a.Kind]++
		summary.AcquisitionsByServer[a.ServerName]++
	}
	summary.UniqueServers = len(summary.AcquisitionsByServer)

	return summary
}
