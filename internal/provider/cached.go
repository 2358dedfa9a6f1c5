package provider

import (
	"context"
	"errors"
	"fmt"

	"fleetscope/internal/domain"
	"fleetscope/internal/fetch"
)

// Cached routes every call of the wrapped provider through one fetch.Client
type Cached struct {
	next   Provider
	client *fetch.Client
}

// NewCached wraps next
func NewCached(next Provider, client *fetch.Client) *Cached {
	return &Cached{next: next, client: client}
}

// Client returns the underlying fetch client
func (c *Cached) Client() *fetch.Client {
	return c.client
}

// ListNetworks returns the cached network list of orgID
func (c *Cached) ListNetworks(ctx context.Context, orgID string) ([]domain.NetworkSite, error) {
	sites, found, err := fetch.Get(ctx, c.client, fetch.NewKey(KindNetworks, orgID),
		func(ctx context.Context) ([]domain.NetworkSite, error) {
			return c.next.ListNetworks(ctx, orgID)
		})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("organization %s: %w", orgID, fetch.ErrNotFound)
	}
	return sites, nil
}

// ListInventory returns the cached inventory of orgID
func (c *Cached) ListInventory(ctx context.Context, orgID string) ([]domain.Device, error) {
	devices, found, err := fetch.Get(ctx, c.client, fetch.NewKey(KindInventory, orgID),
		func(ctx context.Context) ([]domain.Device, error) {
			return c.next.ListInventory(ctx, orgID)
		})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("organization %s: %w", orgID, fetch.ErrNotFound)
	}
	return devices, nil
}

// GetNeighborRecords returns the cached records of serial. A missing switch has no neighbors.
func (c *Cached) GetNeighborRecords(ctx context.Context, serial string) ([]domain.NeighborRecord, error) {
	records, _, err := fetch.Get(ctx, c.client, fetch.NewKey(KindNeighbors, serial),
		func(ctx context.Context) ([]domain.NeighborRecord, error) {
			return c.next.GetNeighborRecords(ctx, serial)
		})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// GetDeviceDetail returns the cached detail of serial
func (c *Cached) GetDeviceDetail(ctx context.Context, networkID, serial string) (*domain.Device, error) {
	dev, found, err := fetch.Get(ctx, c.client, fetch.NewKey(KindDevice, serial),
		func(ctx context.Context) (*domain.Device, error) {
			return c.next.GetDeviceDetail(ctx, networkID, serial)
		})
	if err != nil {
		return nil, err
	}
	if !found || dev == nil {
		return nil, fmt.Errorf("device %s: %w", serial, fetch.ErrNotFound)
	}
	return dev, nil
}

// IsNotFound reports whether err marks a missing resource
func IsNotFound(err error) bool {
	return errors.Is(err, fetch.ErrNotFound)
}
