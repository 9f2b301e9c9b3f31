package loadbalancer

import (
	"github.com/cespare/xxhash/v2"
	rendezvous "github.com/dgryski/go-rendezvous"

	"github.com/deploysim/serversim/sim"
)

// Rendezvous routes a service name to a server fleet via highest-random-
// weight (rendezvous) hashing: the same svcName always maps to the same
// server as long as that server remains in the fleet, and removing or
// adding a server only reshuffles the keys that hashed to it, not the
// whole keyspace. Grounded on etalazz-vsa's dependency on
// dgryski/go-rendezvous for consistent request routing.
type Rendezvous struct {
	byName map[string]*sim.Server
	ring   *rendezvous.Rendezvous
}

// NewRendezvous constructs a Rendezvous picker over servers, named by
// Server.Name().
func NewRendezvous(servers []*sim.Server) *Rendezvous {
	byName := make(map[string]*sim.Server, len(servers))
	names := make([]string, len(servers))
	for i, s := range servers {
		byName[s.Name()] = s
		names[i] = s.Name()
	}
	return &Rendezvous{
		byName: byName,
		ring:   rendezvous.New(names, xxhash.Sum64String),
	}
}

func (rz *Rendezvous) Pick(svcName string) *sim.Server {
	return rz.byName[rz.ring.Lookup(svcName)]
}

func (rz *Rendezvous) AsServerPicker() sim.ServerPicker { return rz.Pick }
