package fetch

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ExportYAML writes the paper list as a YAML document, one list entry per
// paper, omitting fields the worker never filled in.
func ExportYAML(w io.Writer, papers []Paper) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(papers); err != nil {
		return fmt.Errorf("encode papers: %w", err)
	}
	return enc.Close()
}
