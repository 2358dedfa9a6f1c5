package codec

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"fleetscope/internal/domain"
	"fleetscope/internal/service"
)

func classified(d domain.Device) domain.ClassifiedDevice {
	return domain.ClassifiedDevice{Device: d, Role: d.Role()}
}

func testReport() *service.Report {
	fw := classified(domain.Device{Serial: "Q2FW-0001", Model: "MX68", Name: "hq-edge", NetworkID: "N_HQ", LanIP: "10.0.0.1"})
	sw := classified(domain.Device{Serial: "Q2SW-0001", Model: "MS120-8LP", Name: "hq-core", NetworkID: "N_HQ", MAC: "e0:55:3d:00:00:01"})
	ghost := domain.RenderLine{Depth: 2, DeviceID: "GHOST", Name: "Unknown Device", Model: "Device"}

	graph := domain.NewAdjacencyGraph()
	graph.Connect(fw.Serial, sw.Serial)
	graph.Connect(sw.Serial, "GHOST")

	lines := []domain.RenderLine{
		{Depth: 0, DeviceID: fw.Serial, Name: "hq-edge", Model: "MX68", Known: true},
		{Depth: 1, DeviceID: sw.Serial, Name: "hq-core", Model: "MS120-8LP", Known: true},
		ghost,
	}
	hq := domain.NetworkSite{ID: "N_HQ", Name: "Headquarters"}

	return &service.Report{
		Organization: "549236",
		GeneratedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Networks:     []domain.NetworkSite{hq},
		Devices:      []domain.ClassifiedDevice{fw, sw},
		Graph:        graph,
		Neighbors: map[string][]domain.NeighborRecord{
			sw.Serial: {
				{DeviceID: sw.Serial, Protocol: domain.ProtocolLLDP, RemoteID: fw.Serial, PortID: "1"},
				{DeviceID: sw.Serial, Protocol: domain.ProtocolCDP, RemoteID: "GHOST", PortID: "8", RemotePort: "eth0", RemoteName: "printer"},
			},
		},
		Sites: []service.SiteTopology{{
			Network: hq,
			Devices: []domain.ClassifiedDevice{fw, sw},
			Lines:   lines,
		}},
		Topology: lines,
		Failures: []domain.FetchFailure{{Key: "device:Q2AP-0001", Reason: "status 500"}},
		Skipped:  []domain.SkippedItem{{Kind: "device", Ref: "orphan", Reason: "missing serial"}},
		Stats: service.Stats{
			Networks: 1,
			Devices:  2,
			Roles:    map[domain.Role]int{domain.RoleFirewall: 1, domain.RoleSwitch: 1},
		},
	}
}

func TestTextExport(t *testing.T) {
	var buf bytes.Buffer
	if err := NewTextCodec(false).Export(testReport(), &buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"Organization 549236",
		"=== Site: Headquarters (N_HQ) ===",
		"\n|-- [MX68] hq-edge\n",
		"\n    |-- [MS120-8LP] hq-core\n",
		"\n        |-- [Device] Unknown Device\n",
		"No access points found.",
		"Failed fetches (1)",
		"device:Q2AP-0001",
		"Skipped inventory entries (1)",
		"1 networks, 2 devices, 2 links, 1 failed fetches",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("expected no color escapes")
	}
}

func TestTextExportTable(t *testing.T) {
	var buf bytes.Buffer
	writeDeviceTable(&buf, []domain.ClassifiedDevice{
		classified(domain.Device{Serial: "Q1", Model: "MS120", Name: "a"}),
		classified(domain.Device{Serial: "Q22", Model: "MS390-48", Name: "long-switch-name", LanIP: "10.1.1.1"}),
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %d", len(lines))
	}
	col := strings.Index(lines[0], "MODEL")
	for _, l := range lines[1:] {
		if !strings.HasPrefix(l[col:], "MS") {
			t.Errorf("model column not aligned in %q", l)
		}
	}
	if !strings.Contains(lines[1], notAvailable) {
		t.Errorf("expected N/A for empty fields: %q", lines[1])
	}
}

func TestTextExportPortTable(t *testing.T) {
	var buf bytes.Buffer
	if err := NewTextCodec(false).Export(testReport(), &buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	lines := strings.Split(buf.String(), "\n")
	at := -1
	for i, l := range lines {
		if l == "Ports of hq-core (Q2SW-0001)" {
			at = i
			break
		}
	}
	if at < 0 || at+3 >= len(lines) {
		t.Fatalf("port table for hq-core missing\n%s", buf.String())
	}
	if !strings.HasPrefix(lines[at+1], "PORT") {
		t.Errorf("expected header after title, got %q", lines[at+1])
	}

	tests := []struct {
		name string
		row  string
		want []string
	}{
		{"known neighbor named from inventory", lines[at+2], []string{"1", "LLDP", "hq-edge", notAvailable, "Q2FW-0001", "yes"}},
		{"unknown neighbor keeps reported name", lines[at+3], []string{"8", "CDP", "printer", "eth0", "GHOST", "no"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, strings.Fields(tt.row)); diff != "" {
				t.Errorf("row mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if strings.Contains(buf.String(), "Ports of hq-edge") {
		t.Error("firewalls must not get a port table")
	}
}

func TestTextExportColor(t *testing.T) {
	var buf bytes.Buffer
	if err := NewTextCodec(true).Export(testReport(), &buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if !strings.Contains(buf.String(), "\x1b[") {
		t.Error("expected color escapes")
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("disk full") }

func TestTextExportWriteError(t *testing.T) {
	if err := NewTextCodec(false).Export(testReport(), failingWriter{}); err == nil {
		t.Error("expected write error")
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		codec interface {
			Exporter
			Importer
		}
	}{
		{"json", NewJSONCodec()},
		{"yaml", NewYAMLCodec()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := testReport()

			var buf bytes.Buffer
			if err := tt.codec.Export(want, &buf); err != nil {
				t.Fatalf("Export failed: %v", err)
			}
			got, err := tt.codec.Parse(&buf)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}

			if diff := cmp.Diff(want.Graph.Map(), got.Graph.Map()); diff != "" {
				t.Errorf("graph mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(want.Devices, got.Devices); diff != "" {
				t.Errorf("devices mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(want.Topology, got.Topology); diff != "" {
				t.Errorf("topology mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(want.Neighbors, got.Neighbors); diff != "" {
				t.Errorf("neighbors mismatch (-want +got):\n%s", diff)
			}
			if !got.GeneratedAt.Equal(want.GeneratedAt) {
				t.Errorf("generated at %v, want %v", got.GeneratedAt, want.GeneratedAt)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := NewJSONCodec().Parse(strings.NewReader("{")); err == nil {
		t.Error("expected JSON parse error")
	}
	if _, err := NewYAMLCodec().Parse(strings.NewReader("devices: [")); err == nil {
		t.Error("expected YAML parse error")
	}
	if _, err := NewJSONCodec().Parse(strings.NewReader(`{"devices": []}`)); !errors.Is(err, ErrInvalidReport) {
		t.Errorf("expected ErrInvalidReport for a report without organization, got %v", err)
	}
}

func TestParseMissingGraph(t *testing.T) {
	got, err := NewYAMLCodec().Parse(strings.NewReader("organization: \"42\"\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got.Graph == nil || len(got.Graph.Nodes()) != 0 {
		t.Errorf("expected empty graph, got %v", got.Graph)
	}
}

func TestAnsibleExport(t *testing.T) {
	var buf bytes.Buffer
	if err := NewAnsibleCodec().Export(testReport(), &buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	var inv struct {
		All struct {
			Children map[string]struct {
				Hosts map[string]map[string]interface{} `yaml:"hosts"`
			} `yaml:"children"`
			Vars map[string]interface{} `yaml:"vars"`
		} `yaml:"all"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &inv); err != nil {
		t.Fatalf("invalid inventory: %v\n%s", err, buf.String())
	}

	fw := inv.All.Children["firewalls"].Hosts["hq-edge"]
	if fw["ansible_host"] != "10.0.0.1" || fw["serial"] != "Q2FW-0001" {
		t.Errorf("unexpected firewall host %v", fw)
	}
	if _, ok := inv.All.Children["switches"].Hosts["hq-core"]; !ok {
		t.Error("switch missing from switches group")
	}
	if n := len(inv.All.Children["site_headquarters"].Hosts); n != 2 {
		t.Errorf("expected 2 hosts in site group, got %d", n)
	}
	if inv.All.Vars["meraki_org_id"] != "549236" {
		t.Errorf("expected org id var, got %v", inv.All.Vars)
	}
}

func TestGroupName(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"Headquarters", "site_headquarters"},
		{"Branch Office #2", "site_branch_office_2"},
		{"---", "site_unnamed"},
	}
	for _, tt := range tests {
		if got := groupName("site_", tt.label); got != tt.want {
			t.Errorf("groupName(%q) = %q, want %q", tt.label, got, tt.want)
		}
	}
}

func TestForFormat(t *testing.T) {
	for _, name := range []string{"text", "json", "yaml", "ansible-inventory", "terraform"} {
		e, err := ForFormat(name, Options{})
		if err != nil {
			t.Errorf("ForFormat(%q) failed: %v", name, err)
			continue
		}
		if e.Format() != name {
			t.Errorf("ForFormat(%q) returned %q", name, e.Format())
		}
	}

	if _, err := ForFormat("xml", Options{}); err == nil {
		t.Error("expected error for unknown format")
	}
	if _, err := ImporterFor("text"); err == nil {
		t.Error("text should not be importable")
	}
}

func TestTerraformExport(t *testing.T) {
	var buf bytes.Buffer
	if err := NewTerraformCodec().Export(testReport(), &buf); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	// attribute alignment is hclwrite's business
	out := regexp.MustCompile(` +`).ReplaceAllString(buf.String(), " ")

	for _, want := range []string{
		`resource "meraki_networks" "site_n_hq" {`,
		`organization_id = "549236"`,
		`name = "Headquarters"`,
		`resource "meraki_devices" "device_q2fw_0001" {`,
		`serial = "Q2FW-0001"`,
		`resource "meraki_networks_devices_claim" "site_n_hq" {`,
		`network_id = meraki_networks.site_n_hq.network_id`,
		`serials = ["Q2FW-0001", "Q2SW-0001"]`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
