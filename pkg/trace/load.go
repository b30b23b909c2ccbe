package trace

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the encoding of a trace file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf infers the format from a file extension; anything that is not
// .json is read as YAML.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Load reads and links the invocation tree stored at path.
func Load(path string) (*Invocation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace: %w", err)
	}
	defer f.Close()
	return Decode(f, FormatOf(path))
}

// Decode reads and links one invocation tree.
func Decode(r io.Reader, format Format) (*Invocation, error) {
	var root Invocation
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&root); err != nil {
			return nil, fmt.Errorf("failed to parse trace json: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&root); err != nil {
			if err == io.EOF {
				return nil, ErrEmptyTree
			}
			return nil, fmt.Errorf("failed to parse trace yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported trace format %q", format)
	}
	return Tree(&root)
}

// Tree validates and links a decoded invocation tree.
func Tree(root *Invocation) (*Invocation, error) {
	if root == nil || (root.Method == "" && len(root.Children) == 0) {
		return nil, ErrEmptyTree
	}
	if err := root.Link(); err != nil {
		return nil, err
	}
	return root, nil
}
