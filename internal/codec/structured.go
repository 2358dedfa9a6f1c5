package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"fleetscope/internal/domain"
	"fleetscope/internal/service"
)

// ErrInvalidReport is returned when a parsed document is not a discovery report
var ErrInvalidReport = errors.New("not a discovery report")

// StructuredCodec reads and writes complete reports in a self-describing format
type StructuredCodec struct {
	format string
	encode func(w io.Writer, report *service.Report) error
	decode func(r io.Reader, report *service.Report) error
}

// NewJSONCodec writes indented JSON
func NewJSONCodec() *StructuredCodec {
	return &StructuredCodec{
		format: "json",
		encode: func(w io.Writer, report *service.Report) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
		decode: func(r io.Reader, report *service.Report) error {
			return json.NewDecoder(r).Decode(report)
		},
	}
}

// NewYAMLCodec writes YAML with two-space indentation
func NewYAMLCodec() *StructuredCodec {
	return &StructuredCodec{
		format: "yaml",
		encode: func(w io.Writer, report *service.Report) error {
			enc := yaml.NewEncoder(w)
			enc.SetIndent(2)
			if err := enc.Encode(report); err != nil {
				return err
			}
			return enc.Close()
		},
		decode: func(r io.Reader, report *service.Report) error {
			return yaml.NewDecoder(r).Decode(report)
		},
	}
}

// Format returns the codec format identifier
func (c *StructuredCodec) Format() string {
	return c.format
}

// Export writes the whole report
func (c *StructuredCodec) Export(report *service.Report, w io.Writer) error {
	if err := c.encode(w, report); err != nil {
		return fmt.Errorf("failed to encode %s: %w", c.format, err)
	}
	return nil
}

// Parse reads a report previously written by Export. A report without an organization
// is rejected; a missing graph is read as an empty one.
func (c *StructuredCodec) Parse(r io.Reader) (*service.Report, error) {
	var report service.Report
	if err := c.decode(r, &report); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", c.format, err)
	}
	if report.Organization == "" {
		return nil, fmt.Errorf("%w: missing organization", ErrInvalidReport)
	}
	if report.Graph == nil {
		report.Graph = domain.NewAdjacencyGraph()
	}
	return &report, nil
}
