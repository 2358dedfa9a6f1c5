package service

import (
	"time"

	"fleetscope/internal/domain"
	"fleetscope/internal/fetch"
	"fleetscope/internal/topology"
)

// SiteTopology is the rendered view of one network
type SiteTopology struct {
	Network domain.NetworkSite        `json:"network" yaml:"network"`
	Devices []domain.ClassifiedDevice `json:"devices" yaml:"devices"`
	Lines   []domain.RenderLine       `json:"lines" yaml:"lines"`
}

// ByRole returns the site devices with the given role
func (s SiteTopology) ByRole(role domain.Role) []domain.ClassifiedDevice {
	return filterRole(s.Devices, role)
}

// BatchStats summarizes one concurrent fetch batch
type BatchStats struct {
	Items     int   `json:"items" yaml:"items"`
	Succeeded int   `json:"succeeded" yaml:"succeeded"`
	Failed    int   `json:"failed" yaml:"failed"`
	ElapsedMS int64 `json:"elapsed_ms" yaml:"elapsed_ms"`
}

// Stats summarizes a discovery run
type Stats struct {
	Networks   int                 `json:"networks" yaml:"networks"`
	Devices    int                 `json:"devices" yaml:"devices"`
	Roles      map[domain.Role]int `json:"roles" yaml:"roles"`
	Neighbors  BatchStats          `json:"neighbors" yaml:"neighbors"`
	Details    BatchStats          `json:"details" yaml:"details"`
	Graph      topology.BuildStats `json:"graph" yaml:"graph"`
	Fetch      fetch.Stats         `json:"fetch" yaml:"fetch"`
	DurationMS int64               `json:"duration_ms" yaml:"duration_ms"`
}

// Report is the outcome of one discovery run over an organization
type Report struct {
	Organization string                             `json:"organization" yaml:"organization"`
	GeneratedAt  time.Time                          `json:"generated_at" yaml:"generated_at"`
	Networks     []domain.NetworkSite               `json:"networks" yaml:"networks"`
	Devices      []domain.ClassifiedDevice          `json:"devices" yaml:"devices"`
	Graph        *domain.AdjacencyGraph             `json:"graph" yaml:"graph"`
	Neighbors    map[string][]domain.NeighborRecord `json:"neighbors,omitempty" yaml:"neighbors,omitempty"`
	Sites        []SiteTopology                     `json:"sites" yaml:"sites"`
	Topology     []domain.RenderLine                `json:"topology" yaml:"topology"`
	Failures     []domain.FetchFailure              `json:"failures" yaml:"failures"`
	Skipped      []domain.SkippedItem               `json:"skipped" yaml:"skipped"`
	Stats        Stats                              `json:"stats" yaml:"stats"`
}

// Device looks up a device of the report by serial
func (r *Report) Device(serial string) (domain.ClassifiedDevice, bool) {
	for _, d := range r.Devices {
		if d.Serial == serial {
			return d, true
		}
	}
	return domain.ClassifiedDevice{}, false
}

// Ports returns the neighbor records a switch reported, in port order as received
func (r *Report) Ports(serial string) []domain.NeighborRecord {
	return r.Neighbors[serial]
}

// ByRole returns the devices with the given role in inventory order
func (r *Report) ByRole(role domain.Role) []domain.ClassifiedDevice {
	return filterRole(r.Devices, role)
}

// Partial reports whether any fetch failed during the run
func (r *Report) Partial() bool {
	return len(r.Failures) > 0
}

func filterRole(devices []domain.ClassifiedDevice, role domain.Role) []domain.ClassifiedDevice {
	var out []domain.ClassifiedDevice
	for _, d := range devices {
		if d.Role == role {
			out = append(out, d)
		}
	}
	return out
}
