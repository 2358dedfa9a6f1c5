package domain

// Protocol identifies the discovery protocol a neighbor was learned through
type Protocol string

const (
	ProtocolLLDP Protocol = "lldp"
	ProtocolCDP  Protocol = "cdp"
)

// NeighborRecord is one neighbor observation reported by a switch port.
// RemoteID is whatever the protocol reported and may not match any known serial.
type NeighborRecord struct {
	DeviceID   string   `json:"device_id" yaml:"device_id"`
	Protocol   Protocol `json:"protocol" yaml:"protocol"`
	RemoteID   string   `json:"remote_id" yaml:"remote_id"`
	PortID     string   `json:"port_id,omitempty" yaml:"port_id,omitempty"`
	RemotePort string   `json:"remote_port,omitempty" yaml:"remote_port,omitempty"`
	RemoteName string   `json:"remote_name,omitempty" yaml:"remote_name,omitempty"`
}
