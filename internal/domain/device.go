package domain

import "strings"

// Role is the function a device plays in the topology
type Role string

const (
	RoleFirewall    Role = "firewall"
	RoleSwitch      Role = "switch"
	RoleAccessPoint Role = "access_point"
	RoleUnknown     Role = "unknown"
)

// modelPrefixes maps model families to roles, checked in order
var modelPrefixes = []struct {
	prefix string
	role   Role
}{
	{"mx", RoleFirewall},
	{"ms", RoleSwitch},
	{"mr", RoleAccessPoint},
}

// Classify maps a model identifier such as "MS120-8LP" to a role.
// Matching is a case-insensitive substring test, first family wins.
func Classify(model string) Role {
	m := strings.ToLower(model)
	for _, p := range modelPrefixes {
		if strings.Contains(m, p.prefix) {
			return p.role
		}
	}
	return RoleUnknown
}

// Label returns a human-readable role name
func (r Role) Label() string {
	switch r {
	case RoleFirewall:
		return "Firewall"
	case RoleSwitch:
		return "Switch"
	case RoleAccessPoint:
		return "Access Point"
	default:
		return "Unknown"
	}
}

// Device represents a managed appliance from the organization inventory
type Device struct {
	Serial      string `json:"serial" yaml:"serial"`
	Model       string `json:"model" yaml:"model"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	NetworkID   string `json:"network_id,omitempty" yaml:"network_id,omitempty"`
	ProductType string `json:"product_type,omitempty" yaml:"product_type,omitempty"`

	// Detail fields, filled from the per-device lookup
	MAC      string `json:"mac,omitempty" yaml:"mac,omitempty"`
	LanIP    string `json:"lan_ip,omitempty" yaml:"lan_ip,omitempty"`
	Firmware string `json:"firmware,omitempty" yaml:"firmware,omitempty"`
}

// Role derives the device role from its model
func (d Device) Role() Role {
	return Classify(d.Model)
}

// DisplayName returns the configured name, falling back to the serial
func (d Device) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Serial
}

// WithDetail returns a copy of d with empty fields filled from detail
func (d Device) WithDetail(detail Device) Device {
	if d.Name == "" {
		d.Name = detail.Name
	}
	if d.NetworkID == "" {
		d.NetworkID = detail.NetworkID
	}
	if d.MAC == "" {
		d.MAC = detail.MAC
	}
	if d.LanIP == "" {
		d.LanIP = detail.LanIP
	}
	if d.Firmware == "" {
		d.Firmware = detail.Firmware
	}
	return d
}

// ClassifiedDevice pairs a device with its resolved role for presentation
type ClassifiedDevice struct {
	Device `yaml:",inline"`
	Role   Role `json:"role" yaml:"role"`
}

// NetworkSite represents a network of the organization
type NetworkSite struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Tags         []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	ProductTypes []string `json:"product_types,omitempty" yaml:"product_types,omitempty"`
	TimeZone     string   `json:"time_zone,omitempty" yaml:"time_zone,omitempty"`
}

// DisplayName returns the site name, falling back to the id
func (n NetworkSite) DisplayName() string {
	if n.Name != "" {
		return n.Name
	}
	return n.ID
}
