// Package codec converts discovery reports to and from their output formats.
package codec

import (
	"fmt"
	"io"
	"sort"

	"fleetscope/internal/service"
)

// Importer interface for reading a saved report
type Importer interface {
	Parse(r io.Reader) (*service.Report, error)
	Format() string
}

// Exporter interface for writing a report in some format
type Exporter interface {
	Export(report *service.Report, w io.Writer) error
	Format() string
}

// Options tune exporter output
type Options struct {
	// Color enables ANSI colors in the text format
	Color bool
}

// ForFormat returns the exporter registered under name
func ForFormat(name string, opts Options) (Exporter, error) {
	switch name {
	case "text", "":
		return NewTextCodec(opts.Color), nil
	case "json":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	case "ansible", "ansible-inventory":
		return NewAnsibleCodec(), nil
	case "terraform", "hcl":
		return NewTerraformCodec(), nil
	default:
		return nil, fmt.Errorf("unknown format %q (supported: %v)", name, Formats())
	}
}

// ImporterFor returns the importer registered under name
func ImporterFor(name string) (Importer, error) {
	switch name {
	case "json":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	default:
		return nil, fmt.Errorf("cannot import format %q", name)
	}
}

// Formats lists the exporter names
func Formats() []string {
	f := []string{"text", "json", "yaml", "ansible-inventory", "terraform"}
	sort.Strings(f)
	return f
}
