// Package provider supplies organization inventory and neighbor data to discovery.
//
// Dashboard talks to the cloud management REST API, Fixture serves a YAML snapshot for
// offline runs, and Cached wraps either one behind a shared fetch.Client so every
// external call is throttled and fetched at most once per run.
package provider

import (
	"context"

	"fleetscope/internal/domain"
)

// Resource kinds used as cache key prefixes
const (
	KindNetworks  = "networks"
	KindInventory = "inventory"
	KindNeighbors = "neighbors"
	KindDevice    = "device"
)

// Provider is a source of organization data.
// Implementations report missing resources with fetch.ErrNotFound.
type Provider interface {
	// ListNetworks returns the sites of an organization
	ListNetworks(ctx context.Context, orgID string) ([]domain.NetworkSite, error)

	// ListInventory returns every device claimed by an organization
	ListInventory(ctx context.Context, orgID string) ([]domain.Device, error)

	// GetNeighborRecords returns the LLDP/CDP observations of a switch's ports
	GetNeighborRecords(ctx context.Context, serial string) ([]domain.NeighborRecord, error)

	// GetDeviceDetail returns the detail view of one device
	GetDeviceDetail(ctx context.Context, networkID, serial string) (*domain.Device, error)
}
