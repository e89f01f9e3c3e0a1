package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is a graph document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrUnsupportedFormat is returned for encodings other than JSON and YAML.
var ErrUnsupportedFormat = errors.New("unsupported graph format")

// FormatFromPath picks the encoding from a file extension. Unknown extensions are JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Decode parses a graph document.
func Decode(data []byte, format Format) (*Graph, error) {
	var g Graph
	switch format {
	case FormatJSON, "":
		if err := json.Unmarshal(data, &g); err != nil {
			return nil, fmt.Errorf("unmarshaling graph: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &g); err != nil {
			return nil, fmt.Errorf("unmarshaling graph: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	g.fillIDs()
	return &g, nil
}

// Encode serializes a graph document.
func Encode(g *Graph, format Format) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		data, err := json.MarshalIndent(g, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling graph: %w", err)
		}
		return data, nil
	case FormatYAML:
		data, err := yaml.Marshal(g)
		if err != nil {
			return nil, fmt.Errorf("marshaling graph: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// SaveGraph writes a graph to disk, encoded by file extension.
func SaveGraph(path string, g *Graph) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for graph: %w", err)
	}

	data, err := Encode(g, FormatFromPath(path))
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing graph: %w", err)
	}

	return nil
}

// LoadGraph reads a graph from disk, decoded by file extension.
func LoadGraph(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading graph: %w", err)
	}
	return Decode(data, FormatFromPath(path))
}

// fillIDs copies map keys into entries that omit their own ID, so documents
// can be written as `nodes: {n1: {title: ...}}`.
func (g *Graph) fillIDs() {
	for id, n := range g.Nodes {
		if n != nil && n.ID == "" {
			n.ID = id
		}
	}
	for id, e := range g.Edges {
		if e.ID == "" {
			e.ID = id
			g.Edges[id] = e
		}
	}
}
