package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"fleetscope/internal/domain"
	"fleetscope/internal/fetch"
	"fleetscope/internal/pool"
	"fleetscope/internal/provider"
	"fleetscope/internal/topology"
)

// ErrDiscoveryFailed is returned when neither networks nor inventory could be listed
var ErrDiscoveryFailed = errors.New("discovery failed")

// statsSource is implemented by providers that front a fetch.Client
type statsSource interface {
	Client() *fetch.Client
}

// Discovery collects an organization's inventory and reconstructs its topology
type Discovery struct {
	provider provider.Provider
	workers  *pool.Pool
	builder  *topology.Builder
	events   *EventBus
	logger   *logrus.Logger
}

// NewDiscovery creates a discovery service. The pool is shared by every batch of every
// run and stays owned by the caller.
func NewDiscovery(p provider.Provider, workers *pool.Pool, events *EventBus, logger *logrus.Logger) *Discovery {
	if logger == nil {
		logger = logrus.New()
	}
	return &Discovery{
		provider: p,
		workers:  workers,
		builder:  topology.NewBuilder(logger),
		events:   events,
		logger:   logger,
	}
}

type neighborResult struct {
	serial  string
	records []domain.NeighborRecord
}

// Run performs one discovery pass over orgID.
//
// Failed fetches are recorded on the report and the run continues with what it has.
// An error is returned only when both the network and inventory listings fail.
func (s *Discovery) Run(ctx context.Context, orgID string) (*Report, error) {
	start := time.Now()
	log := s.logger.WithField("org_id", orgID)
	log.Info("Starting discovery")
	s.events.Publish(Event{Type: EventDiscoveryStarted, Payload: RunEvent{OrgID: orgID}})

	report := &Report{
		Organization: orgID,
		GeneratedAt:  start.UTC(),
	}

	networks, netErr := s.provider.ListNetworks(ctx, orgID)
	if netErr != nil {
		report.addFailure(fetch.NewKey(provider.KindNetworks, orgID), netErr)
		log.WithError(netErr).Warn("Failed to list networks")
	}
	inventory, invErr := s.provider.ListInventory(ctx, orgID)
	if invErr != nil {
		report.addFailure(fetch.NewKey(provider.KindInventory, orgID), invErr)
		log.WithError(invErr).Warn("Failed to list inventory")
	}
	if netErr != nil && invErr != nil {
		err := fmt.Errorf("organization %s: %w", orgID, errors.Join(ErrDiscoveryFailed, netErr, invErr))
		s.events.Publish(Event{Type: EventDiscoveryFailed, Payload: RunEvent{OrgID: orgID, Error: err.Error()}})
		return nil, err
	}

	report.Networks = networks
	devices := s.validate(report, inventory)

	// Neighbor records, switches only
	var switches []string
	for _, d := range devices {
		if d.Role() == domain.RoleSwitch {
			switches = append(switches, d.Serial)
		}
	}
	nb := pool.RunBatch(ctx, s.workers, switches, func(ctx context.Context, serial string) (neighborResult, error) {
		records, err := s.provider.GetNeighborRecords(ctx, serial)
		return neighborResult{serial: serial, records: records}, err
	})
	records := make(map[string][]domain.NeighborRecord, nb.Succeeded())
	for _, r := range nb.Values {
		records[r.serial] = r.records
	}
	report.Neighbors = records
	for _, f := range nb.Failures {
		report.addFailure(fetch.NewKey(provider.KindNeighbors, f.Item), f.Err)
	}
	report.Stats.Neighbors = batchStats(len(switches), nb.Succeeded(), nb.Failed(), nb.Elapsed)
	s.publishBatch(orgID, "neighbors", report.Stats.Neighbors)

	// Device detail, every device assigned to a network
	var assigned []domain.Device
	for _, d := range devices {
		if d.NetworkID != "" {
			assigned = append(assigned, d)
		}
	}
	db := pool.RunBatch(ctx, s.workers, assigned, func(ctx context.Context, d domain.Device) (*domain.Device, error) {
		detail, err := s.provider.GetDeviceDetail(ctx, d.NetworkID, d.Serial)
		if provider.IsNotFound(err) {
			return nil, nil
		}
		return detail, err
	})
	details := make(map[string]domain.Device, db.Succeeded())
	for _, d := range db.Values {
		if d != nil {
			details[d.Serial] = *d
		}
	}
	for _, f := range db.Failures {
		report.addFailure(fetch.NewKey(provider.KindDevice, f.Item.Serial), f.Err)
	}
	report.Stats.Details = batchStats(len(assigned), db.Succeeded(), db.Failed(), db.Elapsed)
	s.publishBatch(orgID, "details", report.Stats.Details)

	lookup := make(map[string]domain.Device, len(devices))
	report.Stats.Roles = make(map[domain.Role]int)
	for i, d := range devices {
		if detail, ok := details[d.Serial]; ok {
			d = d.WithDetail(detail)
			devices[i] = d
		}
		lookup[d.Serial] = d
		role := d.Role()
		report.Devices = append(report.Devices, domain.ClassifiedDevice{Device: d, Role: role})
		report.Stats.Roles[role]++
	}

	graph, buildStats := s.builder.Build(devices, records)
	report.Graph = graph
	report.Stats.Graph = buildStats

	for _, site := range networks {
		var siteDevices []domain.ClassifiedDevice
		for _, d := range report.Devices {
			if d.NetworkID == site.ID {
				siteDevices = append(siteDevices, d)
			}
		}
		report.Sites = append(report.Sites, SiteTopology{
			Network: site,
			Devices: siteDevices,
			Lines:   topology.Render(graph, roots(siteDevices), lookup),
		})
	}
	report.Topology = topology.Render(graph, roots(report.Devices), lookup)

	sort.SliceStable(report.Failures, func(i, j int) bool {
		return report.Failures[i].Key < report.Failures[j].Key
	})
	report.Stats.Networks = len(networks)
	report.Stats.Devices = len(report.Devices)
	if src, ok := s.provider.(statsSource); ok {
		report.Stats.Fetch = src.Client().Stats()
	}
	report.Stats.DurationMS = time.Since(start).Milliseconds()

	log.WithFields(logrus.Fields{
		"devices":  report.Stats.Devices,
		"edges":    graph.EdgeCount(),
		"failures": len(report.Failures),
		"skipped":  len(report.Skipped),
	}).Info("Discovery complete")
	s.events.Publish(Event{Type: EventDiscoveryComplete, Payload: RunEvent{
		OrgID:    orgID,
		Devices:  report.Stats.Devices,
		Edges:    graph.EdgeCount(),
		Failures: len(report.Failures),
	}})

	return report, nil
}

// validate drops inventory entries without a usable serial
func (s *Discovery) validate(report *Report, inventory []domain.Device) []domain.Device {
	devices := make([]domain.Device, 0, len(inventory))
	seen := make(map[string]struct{}, len(inventory))

	for _, d := range inventory {
		switch _, dup := seen[d.Serial]; {
		case d.Serial == "":
			ref := d.Name
			if ref == "" {
				ref = d.Model
			}
			report.addSkipped("device", ref, "missing serial")
		case dup:
			report.addSkipped("device", d.Serial, "duplicate serial")
		default:
			seen[d.Serial] = struct{}{}
			devices = append(devices, d)
			continue
		}
		s.logger.WithFields(logrus.Fields{
			"model": d.Model,
			"name":  d.Name,
		}).Warn("Skipping inventory entry")
	}
	return devices
}

func (s *Discovery) publishBatch(orgID, name string, st BatchStats) {
	s.events.Publish(Event{Type: EventBatchComplete, Payload: BatchEvent{
		OrgID:     orgID,
		Batch:     name,
		Succeeded: st.Succeeded,
		Failed:    st.Failed,
		ElapsedMS: st.ElapsedMS,
	}})
}

// roots orders firewalls first, then switches. Render skips any switch already reached
// from a firewall, so only disconnected switch islands start their own tree.
func roots(devices []domain.ClassifiedDevice) []string {
	var firewalls, switches []string
	for _, d := range devices {
		switch d.Role {
		case domain.RoleFirewall:
			firewalls = append(firewalls, d.Serial)
		case domain.RoleSwitch:
			switches = append(switches, d.Serial)
		}
	}
	return append(firewalls, switches...)
}

func batchStats(items, ok, failed int, elapsed time.Duration) BatchStats {
	return BatchStats{
		Items:     items,
		Succeeded: ok,
		Failed:    failed,
		ElapsedMS: elapsed.Milliseconds(),
	}
}

func (r *Report) addFailure(key fetch.Key, err error) {
	reason := err.Error()
	var te *fetch.TransientError
	if errors.As(err, &te) {
		reason = te.Err.Error()
	}
	if errors.Is(err, fetch.ErrNotFound) {
		reason = "not found"
	}
	r.Failures = append(r.Failures, domain.FetchFailure{Key: key.String(), Reason: reason})
}

func (r *Report) addSkipped(kind, ref, reason string) {
	r.Skipped = append(r.Skipped, domain.SkippedItem{Kind: kind, Ref: ref, Reason: reason})
}
