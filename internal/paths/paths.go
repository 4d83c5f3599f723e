// Package paths resolves the on-disk locations archscan uses inside an analyzed
// repository and converts between absolute and repo-relative paths.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// DataDirName is the per-repository state directory.
	DataDirName = ".archscan"
	// ConfigFileName is the config file inside DataDirName.
	ConfigFileName = "config.json"
	// StoreFileName is the default run database inside DataDirName.
	StoreFileName = "runs.db"
	// RulesFileName is the default declarative rules file inside DataDirName.
	RulesFileName = "rules.toml"
	// LogsSubdir holds log files inside DataDirName.
	LogsSubdir = "logs"
	// AnalyzeLogName is the log file written by analysis runs.
	AnalyzeLogName = "analyze.log"
)

// DataDir returns <root>/.archscan.
func DataDir(root string) string {
	return filepath.Join(root, DataDirName)
}

// ConfigPath returns the config file location for root.
func ConfigPath(root string) string {
	return filepath.Join(DataDir(root), ConfigFileName)
}

// StorePath returns the default run database location for root.
func StorePath(root string) string {
	return filepath.Join(DataDir(root), StoreFileName)
}

// RulesPath returns the default rules file location for root.
func RulesPath(root string) string {
	return filepath.Join(DataDir(root), RulesFileName)
}

// AnalyzeLogPath returns the analysis log file location for root.
func AnalyzeLogPath(root string) string {
	return filepath.Join(DataDir(root), LogsSubdir, AnalyzeLogName)
}

// EnsureDataDir creates <root>/.archscan and its logs directory.
func EnsureDataDir(root string) (string, error) {
	dir := DataDir(root)
	if err := os.MkdirAll(filepath.Join(dir, LogsSubdir), 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// Resolve makes p absolute against root unless it already is.
func Resolve(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// Canonicalize returns the slash-separated path of abs relative to root, following
// symlinks on both sides when they exist.
func Canonicalize(abs, root string) (string, error) {
	resolved, err := evalIfExists(abs)
	if err != nil {
		return "", err
	}
	rootResolved, err := evalIfExists(root)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(rootResolved, resolved)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func evalIfExists(p string) (string, error) {
	resolved, err := filepath.EvalSymlinks(p)
	if os.IsNotExist(err) {
		return p, nil
	}
	return resolved, err
}

// IsWithin reports whether p lies inside root.
func IsWithin(p, root string) bool {
	rel, err := Canonicalize(p, root)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, "../")
}

// Join turns a slash-separated relative path back into an OS path under root.
func Join(root, rel string) string {
	parts := strings.Split(strings.ReplaceAll(rel, "\\", "/"), "/")
	return filepath.Join(append([]string{root}, parts...)...)
}
