package rules

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const starterHeader = `# archscan rules
#
# Each [[rule]] becomes an inspector. A rule runs on nodes of its target type that
# carry every tag in requires plus the tags produced by the rules and inspectors named
# in after, and that pass its match block. extends inherits another rule's declared
# dependencies.

`

// Starter returns the example rules written by "rules init".
func Starter() *File {
	return &File{
		Version: CurrentVersion,
		Rules: []Rule{
			{
				ID:          "test-source",
				Target:      "file",
				Description: "Sources living under a test directory",
				Requires:    []string{"source.code"},
				Match:       Match{Path: `(^|/)(test|tests|__tests__)/`},
				Set:         Set{Tags: []string{"source.test"}},
			},
			{
				ID:          "java-test-source",
				Target:      "file",
				Description: "Java tests, refining test-source",
				Extends:     "test-source",
				Requires:    []string{"lang.java"},
				Match:       Match{Path: `(^|/)src/test/java/`},
				Set:         Set{Tags: []string{"source.test.java"}},
			},
			{
				ID:          "spring-service",
				Target:      "file",
				Description: "Spring beans named like services",
				Requires:    []string{"framework.spring"},
				Match:       Match{Name: "*Service.java"},
				Set: Set{
					Tags:       []string{"layer.service"},
					Properties: map[string]any{"layer": "service"},
				},
			},
			{
				ID:          "internal-package",
				Target:      "package",
				Description: "Go internal packages",
				Match:       Match{Path: `(^|/)internal(/|$)`},
				Set:         Set{Tags: []string{"visibility.internal"}},
			},
		},
	}
}

// WriteStarter encodes the starter rules as TOML.
func WriteStarter(w io.Writer) error {
	if _, err := io.WriteString(w, starterHeader); err != nil {
		return err
	}
	return toml.NewEncoder(w).Encode(Starter())
}

// InitFile writes the starter rules to path unless it exists and force is false.
func InitFile(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create rules directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create rules file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := WriteStarter(f); err != nil {
		return fmt.Errorf("failed to encode rules: %w", err)
	}
	return nil
}
