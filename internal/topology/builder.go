package topology

import (
	"sort"

	"github.com/sirupsen/logrus"

	"fleetscope/internal/domain"
)

// BuildStats accounts for what happened to the neighbor records of a build
type BuildStats struct {
	Switches     int `json:"switches" yaml:"switches"`
	Records      int `json:"records" yaml:"records"`
	Edges        int `json:"edges" yaml:"edges"`
	Duplicates   int `json:"duplicates" yaml:"duplicates"`
	Unresolved   int `json:"unresolved" yaml:"unresolved"`
	SelfReported int `json:"self_reported" yaml:"self_reported"`
}

// Builder turns inventory and neighbor records into an adjacency graph
type Builder struct {
	logger *logrus.Logger
}

// NewBuilder creates a graph builder
func NewBuilder(logger *logrus.Logger) *Builder {
	if logger == nil {
		logger = logrus.New()
	}
	return &Builder{logger: logger}
}

// Build connects every switch to the neighbors its records name.
//
// Only switches act as edge sources. A remote id that is not a serial of the current
// inventory is dropped rather than added as a dangling node; such neighbors are counted
// in BuildStats.Unresolved.
func (b *Builder) Build(devices []domain.Device, records map[string][]domain.NeighborRecord) (*domain.AdjacencyGraph, BuildStats) {
	graph := domain.NewAdjacencyGraph()
	var stats BuildStats

	known := make(map[string]struct{}, len(devices))
	var switches []string
	for _, d := range devices {
		if d.Serial == "" {
			continue
		}
		if _, dup := known[d.Serial]; dup {
			continue
		}
		known[d.Serial] = struct{}{}
		if d.Role() == domain.RoleSwitch {
			switches = append(switches, d.Serial)
		}
	}
	sort.Strings(switches)
	stats.Switches = len(switches)

	for _, local := range switches {
		for _, rec := range records[local] {
			stats.Records++
			remote := rec.RemoteID

			if remote == local {
				stats.SelfReported++
				continue
			}
			if _, ok := known[remote]; !ok {
				stats.Unresolved++
				b.logger.WithFields(logrus.Fields{
					"serial":   local,
					"protocol": rec.Protocol,
					"remote":   remote,
				}).Debug("Dropping neighbor not present in inventory")
				continue
			}

			if graph.Connect(local, remote) {
				stats.Edges++
			} else {
				stats.Duplicates++
			}
		}
	}

	b.logger.Debugf("Built adjacency graph: %d switches, %d records, %d edges, %d unresolved",
		stats.Switches, stats.Records, stats.Edges, stats.Unresolved)
	return graph, stats
}
