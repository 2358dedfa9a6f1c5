package codec

import (
	"fmt"
	"io"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"fleetscope/internal/domain"
	"fleetscope/internal/service"
)

// TerraformCodec exports the inventory as Terraform configuration for the Meraki provider:
// one meraki_networks resource per site, one meraki_devices resource per device and a
// meraki_networks_devices_claim per site binding its serials to the network.
type TerraformCodec struct{}

// NewTerraformCodec creates a new Terraform codec
func NewTerraformCodec() *TerraformCodec {
	return &TerraformCodec{}
}

// Format returns the codec format identifier
func (c *TerraformCodec) Format() string {
	return "terraform"
}

// Export writes the report as HCL
func (c *TerraformCodec) Export(report *service.Report, w io.Writer) error {
	f := hclwrite.NewEmptyFile()
	root := f.Body()

	siteNames := make(map[string]string, len(report.Networks))
	for _, n := range report.Networks {
		name := groupName("site_", n.ID)
		siteNames[n.ID] = name

		block := root.AppendNewBlock("resource", []string{"meraki_networks", name})
		body := block.Body()
		body.SetAttributeValue("organization_id", cty.StringVal(report.Organization))
		body.SetAttributeValue("name", cty.StringVal(n.DisplayName()))
		setStringList(body, "product_types", n.ProductTypes)
		setStringList(body, "tags", n.Tags)
		if n.TimeZone != "" {
			body.SetAttributeValue("time_zone", cty.StringVal(n.TimeZone))
		}
		root.AppendNewline()
	}

	claims := make(map[string][]string)
	for _, d := range report.Devices {
		block := root.AppendNewBlock("resource", []string{"meraki_devices", resourceName(d)})
		body := block.Body()
		body.SetAttributeValue("serial", cty.StringVal(d.Serial))
		if d.Name != "" {
			body.SetAttributeValue("name", cty.StringVal(d.Name))
		}
		root.AppendNewline()

		if _, ok := siteNames[d.NetworkID]; ok {
			claims[d.NetworkID] = append(claims[d.NetworkID], d.Serial)
		}
	}

	for _, n := range report.Networks {
		serials := claims[n.ID]
		if len(serials) == 0 {
			continue
		}
		block := root.AppendNewBlock("resource", []string{"meraki_networks_devices_claim", siteNames[n.ID]})
		body := block.Body()
		body.SetAttributeTraversal("network_id", hcl.Traversal{
			hcl.TraverseRoot{Name: "meraki_networks"},
			hcl.TraverseAttr{Name: siteNames[n.ID]},
			hcl.TraverseAttr{Name: "network_id"},
		})
		setStringList(body, "serials", serials)
		root.AppendNewline()
	}

	if _, err := w.Write(hclwrite.Format(f.Bytes())); err != nil {
		return fmt.Errorf("failed to write Terraform configuration: %w", err)
	}
	return nil
}

// resourceName is the Terraform resource name of a device
func resourceName(d domain.ClassifiedDevice) string {
	return groupName("device_", d.Serial)
}

func setStringList(body *hclwrite.Body, name string, values []string) {
	if len(values) == 0 {
		return
	}
	vals := make([]cty.Value, len(values))
	for i, v := range values {
		vals[i] = cty.StringVal(v)
	}
	body.SetAttributeValue(name, cty.ListVal(vals))
}
