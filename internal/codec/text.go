package codec

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"fleetscope/internal/domain"
	"fleetscope/internal/service"
)

const notAvailable = "N/A"

// TextCodec renders a report for terminals: device and switch port tables per site
// followed by the ASCII topology tree
type TextCodec struct {
	header *color.Color
	warn   *color.Color
	roles  map[domain.Role]*color.Color
}

// NewTextCodec creates a text exporter. Colors are emitted only when colorize is set.
func NewTextCodec(colorize bool) *TextCodec {
	c := &TextCodec{
		header: color.New(color.FgCyan, color.Bold),
		warn:   color.New(color.FgYellow),
		roles: map[domain.Role]*color.Color{
			domain.RoleFirewall:    color.New(color.FgRed),
			domain.RoleSwitch:      color.New(color.FgBlue),
			domain.RoleAccessPoint: color.New(color.FgGreen),
			domain.RoleUnknown:     color.New(color.FgWhite),
		},
	}
	for _, col := range c.all() {
		if colorize {
			col.EnableColor()
		} else {
			col.DisableColor()
		}
	}
	return c
}

func (c *TextCodec) all() []*color.Color {
	out := []*color.Color{c.header, c.warn}
	for _, col := range c.roles {
		out = append(out, col)
	}
	return out
}

// Format returns the codec format identifier
func (c *TextCodec) Format() string {
	return "text"
}

// Export writes the report
func (c *TextCodec) Export(report *service.Report, w io.Writer) error {
	ew := &errWriter{w: w}

	c.header.Fprintf(ew, "Organization %s", report.Organization)
	fmt.Fprintf(ew, " (generated %s)\n", report.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	for _, site := range report.Sites {
		fmt.Fprintln(ew)
		c.header.Fprintf(ew, "=== Site: %s (%s) ===\n", site.Network.DisplayName(), site.Network.ID)

		for _, role := range []domain.Role{domain.RoleFirewall, domain.RoleSwitch, domain.RoleAccessPoint} {
			devices := site.ByRole(role)
			fmt.Fprintf(ew, "\n%s\n", plural(role))
			if len(devices) == 0 {
				fmt.Fprintf(ew, "No %s found.\n", strings.ToLower(plural(role)))
				continue
			}
			writeDeviceTable(ew, devices)
			if role == domain.RoleSwitch {
				writePortTables(ew, report, devices)
			}
		}

		fmt.Fprintln(ew, "\nTopology")
		if len(site.Lines) == 0 {
			fmt.Fprintln(ew, "No topology data.")
		}
		c.WriteTree(ew, site.Lines)
	}

	fmt.Fprintln(ew)
	c.header.Fprintln(ew, "=== Organization topology ===")
	c.WriteTree(ew, report.Topology)

	if len(report.Failures) > 0 {
		fmt.Fprintln(ew)
		c.warn.Fprintf(ew, "Failed fetches (%d)\n", len(report.Failures))
		tw := tabwriter.NewWriter(ew, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tREASON")
		for _, f := range report.Failures {
			fmt.Fprintf(tw, "%s\t%s\n", f.Key, f.Reason)
		}
		tw.Flush()
	}

	if len(report.Skipped) > 0 {
		fmt.Fprintln(ew)
		c.warn.Fprintf(ew, "Skipped inventory entries (%d)\n", len(report.Skipped))
		tw := tabwriter.NewWriter(ew, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "KIND\tREF\tREASON")
		for _, s := range report.Skipped {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Kind, orNA(s.Ref), s.Reason)
		}
		tw.Flush()
	}

	edges := 0
	if report.Graph != nil {
		edges = report.Graph.EdgeCount()
	}
	fmt.Fprintf(ew, "\n%d networks, %d devices, %d links, %d failed fetches, %dms\n",
		report.Stats.Networks, report.Stats.Devices, edges, len(report.Failures), report.Stats.DurationMS)

	return ew.err
}

// WriteTree writes render lines as an indented "|-- [model] name" tree
func (c *TextCodec) WriteTree(w io.Writer, lines []domain.RenderLine) {
	for _, l := range lines {
		col := c.roles[domain.Classify(l.Model)]
		fmt.Fprintf(w, "%s|-- %s\n", strings.Repeat("    ", l.Depth), col.Sprintf("[%s] %s", l.Model, l.Name))
	}
}

func writeDeviceTable(w io.Writer, devices []domain.ClassifiedDevice) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tMODEL\tSERIAL\tMAC\tLAN IP\tFIRMWARE")
	for _, d := range devices {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			orNA(d.Name), orNA(d.Model), d.Serial, orNA(d.MAC), orNA(d.LanIP), orNA(d.Firmware))
	}
	tw.Flush()
}

// writePortTables lists the neighbors each switch reported, port by port
func writePortTables(w io.Writer, report *service.Report, switches []domain.ClassifiedDevice) {
	for _, sw := range switches {
		ports := report.Ports(sw.Serial)
		if len(ports) == 0 {
			continue
		}
		fmt.Fprintf(w, "\nPorts of %s (%s)\n", orNA(sw.Name), sw.Serial)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "PORT\tPROTOCOL\tNEIGHBOR\tREMOTE PORT\tREMOTE ID\tKNOWN")
		for _, p := range ports {
			name, known := p.RemoteName, "no"
			if d, ok := report.Device(p.RemoteID); ok {
				known = "yes"
				if name == "" {
					name = d.Name
				}
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				orNA(p.PortID), strings.ToUpper(string(p.Protocol)), orNA(name), orNA(p.RemotePort), p.RemoteID, known)
		}
		tw.Flush()
	}
}

func plural(r domain.Role) string {
	switch r {
	case domain.RoleFirewall:
		return "Firewalls"
	case domain.RoleSwitch:
		return "Switches"
	case domain.RoleAccessPoint:
		return "Access Points"
	default:
		return "Other Devices"
	}
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}

// errWriter remembers the first write error so Export can report it once
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	if err != nil {
		e.err = err
	}
	return n, err
}
