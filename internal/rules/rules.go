// Package rules turns declarative rule files into inspectors. A rule matches nodes of
// one type by name, path and property values, and sets tags and properties on them.
package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	scanerrors "archscan/internal/errors"
)

// CurrentVersion is the rules file schema version.
const CurrentVersion = 1

// File is the root of a rules file.
type File struct {
	Version int    `toml:"version" yaml:"version"`
	Rules   []Rule `toml:"rule" yaml:"rules"`
}

// Rule declares one inspector.
type Rule struct {
	// ID is the inspector identity.
	ID string `toml:"id" yaml:"id"`
	// Target is the node type name ("file", "class", "package").
	Target string `toml:"target" yaml:"target"`
	// Description is shown by the inspectors command.
	Description string `toml:"description,omitempty" yaml:"description,omitempty"`
	// Extends names another rule whose dependency fragments are inherited.
	Extends string `toml:"extends,omitempty" yaml:"extends,omitempty"`

	Requires []string `toml:"requires,omitempty" yaml:"requires,omitempty"`
	After    []string `toml:"after,omitempty" yaml:"after,omitempty"`
	Produces []string `toml:"produces,omitempty" yaml:"produces,omitempty"`

	Match Match `toml:"match,omitempty" yaml:"match,omitempty"`
	Set   Set   `toml:"set" yaml:"set"`
}

// Match selects nodes. Empty fields match everything.
type Match struct {
	// Name is a glob matched against the node name.
	Name string `toml:"name,omitempty" yaml:"name,omitempty"`
	// Path is a regular expression matched against the file path of files, the
	// directory of packages and the declaring file of classes. Nodes without a path
	// are matched by id.
	Path string `toml:"path,omitempty" yaml:"path,omitempty"`
	// Properties must all be present with the given value, compared as text.
	Properties map[string]string `toml:"properties,omitempty" yaml:"properties,omitempty"`
}

// Set is what a matching rule writes.
type Set struct {
	Tags       []string       `toml:"tags,omitempty" yaml:"tags,omitempty"`
	Properties map[string]any `toml:"properties,omitempty" yaml:"properties,omitempty"`
}

// Format is a rules file encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatForPath picks the encoding from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", scanerrors.Newf(scanerrors.ConfigInvalid, "unsupported rules file extension %q", filepath.Ext(path))
}

// Load reads and parses a rules file.
func Load(path string) (*File, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	f, err := Parse(data, format)
	if err != nil {
		return nil, scanerrors.Wrap(scanerrors.ConfigInvalid, "failed to parse "+path, err)
	}
	return f, nil
}

// Parse decodes a rules document. Unknown keys are rejected.
func Parse(data []byte, format Format) (*File, error) {
	var f File
	switch format {
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, err
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown rules format %q", format)
	}
	if f.Version < 1 {
		f.Version = CurrentVersion
	}
	if f.Version > CurrentVersion {
		return nil, fmt.Errorf("rules version %d is newer than supported version %d", f.Version, CurrentVersion)
	}
	return &f, nil
}
