package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"fleetscope/internal/domain"
	"fleetscope/internal/fetch"
)

const (
	// DefaultBaseURL is the v1 API root
	DefaultBaseURL = "https://api.meraki.com/api/v1"
	// DefaultTimeout bounds a single HTTP request
	DefaultTimeout = 30 * time.Second

	apiKeyHeader = "X-Cisco-Meraki-API-Key"
	pageSize     = 1000
)

// maxPages caps how many pages one listing fetches
var maxPages = 100

var (
	// ErrNoAPIKey is returned when a dashboard client is created without credentials
	ErrNoAPIKey = errors.New("api key is required")
	// ErrPageLimit is returned when a listing still has a next page after maxPages pages
	ErrPageLimit = errors.New("page limit reached")
)

// StatusError is a non-2xx response other than 404
type StatusError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("GET %s: status %d", e.Path, e.StatusCode)
	}
	return fmt.Sprintf("GET %s: status %d: %s", e.Path, e.StatusCode, e.Body)
}

// DashboardConfig configures the REST client
type DashboardConfig struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	// Throttle paces every page after the first of a paginated listing.
	// The first page is paced by whoever calls the provider.
	Throttle fetch.Throttle
}

// Dashboard reads organization data from the REST API
type Dashboard struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	throttle fetch.Throttle
	logger   *logrus.Logger
}

// NewDashboard creates a REST provider
func NewDashboard(cfg DashboardConfig, logger *logrus.Logger) (*Dashboard, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Dashboard{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: cfg.Timeout},
		throttle: cfg.Throttle,
		logger:   logger,
	}, nil
}

// API payloads

type networkJSON struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Tags         []string `json:"tags"`
	ProductTypes []string `json:"productTypes"`
	TimeZone     string   `json:"timeZone"`
}

type deviceJSON struct {
	Serial      string `json:"serial"`
	Model       string `json:"model"`
	Name        string `json:"name"`
	NetworkID   string `json:"networkId"`
	ProductType string `json:"productType"`
	MAC         string `json:"mac"`
	LanIP       string `json:"lanIp"`
	Firmware    string `json:"firmware"`
}

func (d deviceJSON) toDomain() domain.Device {
	return domain.Device{
		Serial:      d.Serial,
		Model:       d.Model,
		Name:        d.Name,
		NetworkID:   d.NetworkID,
		ProductType: d.ProductType,
		MAC:         d.MAC,
		LanIP:       d.LanIP,
		Firmware:    d.Firmware,
	}
}

type neighborJSON struct {
	DeviceID   string `json:"deviceId"`
	ChassisID  string `json:"chassisId"`
	SystemName string `json:"systemName"`
	PortID     string `json:"portId"`
}

// remoteID prefers the reported device id, then LLDP chassis id, then system name
func (n *neighborJSON) remoteID() string {
	switch {
	case n.DeviceID != "":
		return n.DeviceID
	case n.ChassisID != "":
		return n.ChassisID
	default:
		return n.SystemName
	}
}

type portStatusJSON struct {
	PortID string        `json:"portId"`
	Status string        `json:"status"`
	LLDP   *neighborJSON `json:"lldp"`
	CDP    *neighborJSON `json:"cdp"`
}

// ListNetworks returns the networks of an organization
func (d *Dashboard) ListNetworks(ctx context.Context, orgID string) ([]domain.NetworkSite, error) {
	var raw []networkJSON
	if err := d.getPaged(ctx, "/organizations/"+url.PathEscape(orgID)+"/networks", &raw); err != nil {
		return nil, err
	}

	sites := make([]domain.NetworkSite, 0, len(raw))
	for _, n := range raw {
		sites = append(sites, domain.NetworkSite{
			ID:           n.ID,
			Name:         n.Name,
			Tags:         n.Tags,
			ProductTypes: n.ProductTypes,
			TimeZone:     n.TimeZone,
		})
	}
	return sites, nil
}

// ListInventory returns the devices of an organization
func (d *Dashboard) ListInventory(ctx context.Context, orgID string) ([]domain.Device, error) {
	var raw []deviceJSON
	if err := d.getPaged(ctx, "/organizations/"+url.PathEscape(orgID)+"/inventory/devices", &raw); err != nil {
		return nil, err
	}

	devices := make([]domain.Device, 0, len(raw))
	for _, dev := range raw {
		devices = append(devices, dev.toDomain())
	}
	return devices, nil
}

// GetNeighborRecords maps switch port statuses to one record per LLDP or CDP block
func (d *Dashboard) GetNeighborRecords(ctx context.Context, serial string) ([]domain.NeighborRecord, error) {
	var ports []portStatusJSON
	if _, err := d.get(ctx, "/devices/"+url.PathEscape(serial)+"/switch/ports/statuses", &ports); err != nil {
		return nil, err
	}

	var records []domain.NeighborRecord
	for _, p := range ports {
		if p.LLDP != nil {
			records = append(records, neighborRecord(serial, p.PortID, domain.ProtocolLLDP, p.LLDP))
		}
		if p.CDP != nil {
			records = append(records, neighborRecord(serial, p.PortID, domain.ProtocolCDP, p.CDP))
		}
	}
	return records, nil
}

func neighborRecord(serial, port string, proto domain.Protocol, n *neighborJSON) domain.NeighborRecord {
	return domain.NeighborRecord{
		DeviceID:   serial,
		Protocol:   proto,
		RemoteID:   n.remoteID(),
		PortID:     port,
		RemotePort: n.PortID,
		RemoteName: n.SystemName,
	}
}

// GetDeviceDetail returns one device as seen from its network
func (d *Dashboard) GetDeviceDetail(ctx context.Context, networkID, serial string) (*domain.Device, error) {
	var raw deviceJSON
	path := "/networks/" + url.PathEscape(networkID) + "/devices/" + url.PathEscape(serial)
	if _, err := d.get(ctx, path, &raw); err != nil {
		return nil, err
	}
	dev := raw.toDomain()
	if dev.Serial == "" {
		dev.Serial = serial
	}
	return &dev, nil
}

// getPaged follows rel=next links and appends every page into out, which must point to a slice
func (d *Dashboard) getPaged(ctx context.Context, path string, out any) error {
	next := path + "?perPage=" + fmt.Sprint(pageSize)
	var pages []json.RawMessage

	for i := 0; next != "" && i < maxPages; i++ {
		if i > 0 && d.throttle != nil {
			if err := d.throttle.Wait(ctx); err != nil {
				return fmt.Errorf("wait for page %d of %s: %w", i+1, path, err)
			}
		}
		var page json.RawMessage
		link, err := d.get(ctx, next, &page)
		if err != nil {
			return err
		}
		pages = append(pages, page)
		next = nextLink(link, d.baseURL)
	}
	if next != "" {
		d.logger.WithFields(logrus.Fields{"path": path, "pages": len(pages)}).Warn("Listing truncated at page limit")
		return fmt.Errorf("GET %s: %w after %d pages", path, ErrPageLimit, len(pages))
	}

	return mergePages(pages, out)
}

// mergePages concatenates JSON array pages and decodes the result into out
func mergePages(pages []json.RawMessage, out any) error {
	var all []json.RawMessage
	for _, p := range pages {
		var items []json.RawMessage
		if err := json.Unmarshal(p, &items); err != nil {
			return fmt.Errorf("decode page: %w", err)
		}
		all = append(all, items...)
	}
	if all == nil {
		all = []json.RawMessage{}
	}

	data, err := json.Marshal(all)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// get performs one request and decodes the JSON body. It returns the Link header.
func (d *Dashboard) get(ctx context.Context, path string, out any) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+path, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(apiKeyHeader, d.apiKey)
	req.Header.Set("Accept", "application/json")

	d.logger.WithField("path", path).Debug("GET")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("GET %s: %w", path, fetch.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &StatusError{Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}
	return resp.Header.Get("Link"), nil
}

// nextLink extracts the rel=next target of a Link header as a path relative to base
func nextLink(header, base string) string {
	for _, part := range strings.Split(header, ",") {
		segs := strings.Split(part, ";")
		if len(segs) < 2 {
			continue
		}
		target := strings.Trim(strings.TrimSpace(segs[0]), "<>")
		for _, attr := range segs[1:] {
			if strings.ReplaceAll(strings.TrimSpace(attr), `"`, "") != "rel=next" {
				continue
			}
			if strings.HasPrefix(target, base) {
				return strings.TrimPrefix(target, base)
			}
			if u, err := url.Parse(target); err == nil && u.Path != "" {
				bu, _ := url.Parse(base)
				p := u.Path
				if bu != nil {
					p = strings.TrimPrefix(p, bu.Path)
				}
				if u.RawQuery != "" {
					p += "?" + u.RawQuery
				}
				return p
			}
		}
	}
	return ""
}
