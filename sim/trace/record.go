// Package trace provides optional decision and resource-acquisition logs
// for a simulation run: the ordered sequence of submitted SvcRequests
// (tagged by the UserGroup that manufactured them) and per-Server
// hardware/software acquisition logs, per spec.md §6's "Optional logs".
package trace

import "github.com/deploysim/serversim/sim"

// AcquisitionRecord captures one hardware- or software-thread grant.
// Grounded on original_source/serversim/server.py's optional
// hw_svc_req_log / sw_svc_req_log.
type AcquisitionRecord struct {
	Kind       string // "hw" or "sw"
	ServerName string
	RequestID  string
	Time       float64
}

// RequestRecord captures one SvcRequest submitted by a UserGroup, along
// with its time_log snapshot at the moment it is recorded.
type RequestRecord struct {
	GroupName     string
	RequesterName string
	RequestID     string
	Submitted     float64
	Completed     bool
	TimeLog       []sim.TimeLogEntry
}
