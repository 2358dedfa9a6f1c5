package provider

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"fleetscope/internal/domain"
	"fleetscope/internal/fetch"
)

// ErrSimulated is returned for resources listed under failures in a fixture
var ErrSimulated = errors.New("simulated failure")

// FixtureYAML is the on-disk snapshot format
type FixtureYAML struct {
	// Organization restricts the snapshot to one org id; empty matches any
	Organization string                             `yaml:"organization,omitempty"`
	Networks     []domain.NetworkSite               `yaml:"networks"`
	Devices      []domain.Device                    `yaml:"devices"`
	Neighbors    map[string][]domain.NeighborRecord `yaml:"neighbors,omitempty"`
	// Failures lists cache keys ("kind:id") whose fetch fails every time
	Failures []string `yaml:"failures,omitempty"`
}

// Fixture serves organization data from a YAML snapshot
type Fixture struct {
	data     FixtureYAML
	bySerial map[string]domain.Device
	failing  map[string]struct{}
}

// LoadFixture reads a snapshot file
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture decodes a snapshot
func ParseFixture(data []byte) (*Fixture, error) {
	var raw FixtureYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	return NewFixture(raw), nil
}

// NewFixture builds a provider from an in-memory snapshot
func NewFixture(data FixtureYAML) *Fixture {
	f := &Fixture{
		data:     data,
		bySerial: make(map[string]domain.Device, len(data.Devices)),
		failing:  make(map[string]struct{}, len(data.Failures)),
	}
	for _, d := range data.Devices {
		if d.Serial != "" {
			f.bySerial[d.Serial] = d
		}
	}
	for _, k := range data.Failures {
		f.failing[k] = struct{}{}
	}
	return f
}

func (f *Fixture) check(kind, id string) error {
	key := fetch.NewKey(kind, id)
	if _, ok := f.failing[key.String()]; ok {
		return fmt.Errorf("%s: %w", key, ErrSimulated)
	}
	return nil
}

// Organization returns the org id the snapshot is restricted to, or ""
func (f *Fixture) Organization() string {
	return f.data.Organization
}

func (f *Fixture) orgMatches(orgID string) bool {
	return f.data.Organization == "" || f.data.Organization == orgID
}

// ListNetworks returns the snapshot networks
func (f *Fixture) ListNetworks(ctx context.Context, orgID string) ([]domain.NetworkSite, error) {
	if err := f.check(KindNetworks, orgID); err != nil {
		return nil, err
	}
	if !f.orgMatches(orgID) {
		return nil, fmt.Errorf("organization %s: %w", orgID, fetch.ErrNotFound)
	}
	return append([]domain.NetworkSite(nil), f.data.Networks...), nil
}

// ListInventory returns the snapshot devices without their detail fields
func (f *Fixture) ListInventory(ctx context.Context, orgID string) ([]domain.Device, error) {
	if err := f.check(KindInventory, orgID); err != nil {
		return nil, err
	}
	if !f.orgMatches(orgID) {
		return nil, fmt.Errorf("organization %s: %w", orgID, fetch.ErrNotFound)
	}

	devices := make([]domain.Device, 0, len(f.data.Devices))
	for _, d := range f.data.Devices {
		d.LanIP = ""
		d.Firmware = ""
		devices = append(devices, d)
	}
	return devices, nil
}

// GetNeighborRecords returns the snapshot records of a switch
func (f *Fixture) GetNeighborRecords(ctx context.Context, serial string) ([]domain.NeighborRecord, error) {
	if err := f.check(KindNeighbors, serial); err != nil {
		return nil, err
	}
	if _, ok := f.bySerial[serial]; !ok {
		return nil, fmt.Errorf("device %s: %w", serial, fetch.ErrNotFound)
	}

	records := make([]domain.NeighborRecord, 0, len(f.data.Neighbors[serial]))
	for _, r := range f.data.Neighbors[serial] {
		if r.DeviceID == "" {
			r.DeviceID = serial
		}
		records = append(records, r)
	}
	return records, nil
}

// GetDeviceDetail returns the full snapshot entry of a device in networkID
func (f *Fixture) GetDeviceDetail(ctx context.Context, networkID, serial string) (*domain.Device, error) {
	if err := f.check(KindDevice, serial); err != nil {
		return nil, err
	}
	d, ok := f.bySerial[serial]
	if !ok || d.NetworkID != networkID {
		return nil, fmt.Errorf("device %s in network %s: %w", serial, networkID, fetch.ErrNotFound)
	}
	return &d, nil
}
