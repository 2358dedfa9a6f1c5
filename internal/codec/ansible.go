package codec

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"fleetscope/internal/domain"
	"fleetscope/internal/service"
)

// AnsibleCodec exports the inventory as an Ansible YAML inventory.
// Hosts are grouped by role and by site; ansible_host is the device LAN IP.
type AnsibleCodec struct{}

// NewAnsibleCodec creates a new Ansible codec
func NewAnsibleCodec() *AnsibleCodec {
	return &AnsibleCodec{}
}

// Format returns the codec format identifier
func (c *AnsibleCodec) Format() string {
	return "ansible-inventory"
}

// ansibleInventory represents the Ansible inventory structure
type ansibleInventory struct {
	All ansibleGroup `yaml:"all"`
}

type ansibleGroup struct {
	Children map[string]ansibleGroupDef `yaml:"children,omitempty"`
	Vars     map[string]interface{}     `yaml:"vars,omitempty"`
}

type ansibleGroupDef struct {
	Hosts map[string]ansibleHost `yaml:"hosts,omitempty"`
	Vars  map[string]interface{} `yaml:"vars,omitempty"`
}

type ansibleHost struct {
	AnsibleHost string                 `yaml:"ansible_host,omitempty"`
	Vars        map[string]interface{} `yaml:",inline"`
}

var nonIdent = regexp.MustCompile(`[^a-z0-9_]+`)

// groupName turns a label into a valid Ansible group name
func groupName(prefix, label string) string {
	name := nonIdent.ReplaceAllString(strings.ToLower(label), "_")
	name = strings.Trim(name, "_")
	if name == "" {
		name = "unnamed"
	}
	return prefix + name
}

// Export writes the report devices as an Ansible inventory
func (c *AnsibleCodec) Export(report *service.Report, w io.Writer) error {
	inv := ansibleInventory{
		All: ansibleGroup{
			Children: make(map[string]ansibleGroupDef),
			Vars:     map[string]interface{}{"meraki_org_id": report.Organization},
		},
	}

	sites := make(map[string]string, len(report.Networks))
	for _, n := range report.Networks {
		sites[n.ID] = groupName("site_", n.DisplayName())
	}

	add := func(group, host string, h ansibleHost) {
		def, ok := inv.All.Children[group]
		if !ok {
			def = ansibleGroupDef{Hosts: make(map[string]ansibleHost)}
		}
		def.Hosts[host] = h
		inv.All.Children[group] = def
	}

	for _, d := range report.Devices {
		host := ansibleHost{
			AnsibleHost: d.LanIP,
			Vars: map[string]interface{}{
				"serial": d.Serial,
				"model":  d.Model,
			},
		}
		if d.MAC != "" {
			host.Vars["mac"] = d.MAC
		}
		if d.Firmware != "" {
			host.Vars["firmware"] = d.Firmware
		}
		if d.NetworkID != "" {
			host.Vars["network_id"] = d.NetworkID
		}

		name := hostName(d)
		add(roleGroup(d.Role), name, host)
		if site, ok := sites[d.NetworkID]; ok {
			add(site, name, host)
		}
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(&inv); err != nil {
		return fmt.Errorf("failed to encode Ansible inventory: %w", err)
	}

	return nil
}

// hostName prefers the configured device name; serials keep hosts unique otherwise
func hostName(d domain.ClassifiedDevice) string {
	if d.Name == "" {
		return strings.ToLower(d.Serial)
	}
	return strings.ToLower(strings.ReplaceAll(d.Name, " ", "-"))
}

func roleGroup(r domain.Role) string {
	switch r {
	case domain.RoleFirewall:
		return "firewalls"
	case domain.RoleSwitch:
		return "switches"
	case domain.RoleAccessPoint:
		return "access_points"
	default:
		return "other"
	}
}
