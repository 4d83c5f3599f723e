package slogutil

import (
	"io"
	"log/slog"
	"os"

	"archscan/internal/config"
	"archscan/internal/paths"
)

// LoggerFactory builds the loggers of one CLI invocation and owns the files they write.
// Precedence for levels: CLI flags > config > default (info).
type LoggerFactory struct {
	repoRoot string
	config   *config.Config
	cliLevel *slog.Level
	closers  []io.Closer
}

// NewLoggerFactory creates a factory for repoRoot. cfg may be nil.
func NewLoggerFactory(repoRoot string, cfg *config.Config) *LoggerFactory {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &LoggerFactory{repoRoot: repoRoot, config: cfg}
}

// WithCLILevel overrides the configured level for console output.
func (f *LoggerFactory) WithCLILevel(level slog.Level) *LoggerFactory {
	f.cliLevel = &level
	return f
}

// ConsoleLogger writes human-readable records to w at the CLI level (warn when no
// flag was given).
func (f *LoggerFactory) ConsoleLogger(w io.Writer) *slog.Logger {
	return slog.New(NewLineHandler(w, &slog.HandlerOptions{Level: f.consoleLevel()}))
}

// AnalyzeLogger writes to the console and to the run log file configured under
// logging.file (relative paths resolve against the repository root). When the file
// cannot be opened the console logger is returned together with the error.
func (f *LoggerFactory) AnalyzeLogger(console io.Writer) (*slog.Logger, error) {
	consoleHandler := NewLineHandler(console, &slog.HandlerOptions{Level: f.consoleLevel()})
	if f.repoRoot == "" || f.config.Logging.File == "" {
		return slog.New(consoleHandler), nil
	}

	path := paths.Resolve(f.repoRoot, f.config.Logging.File)
	w, err := f.openLogFile(path)
	if err != nil {
		return slog.New(consoleHandler), err
	}
	fileHandler := NewHandler(w, f.config.Logging.Format, f.fileLevel())
	return slog.New(NewTeeHandler(consoleHandler, fileHandler)), nil
}

func (f *LoggerFactory) openLogFile(path string) (io.Writer, error) {
	if size := ParseSize(f.config.Logging.MaxSize); size > 0 {
		rf, err := OpenRotatingFile(path, size, f.config.Logging.MaxBackups)
		if err != nil {
			return nil, err
		}
		f.closers = append(f.closers, rf)
		return rf, nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	f.closers = append(f.closers, file)
	return file, nil
}

func (f *LoggerFactory) consoleLevel() slog.Level {
	if f.cliLevel != nil {
		return *f.cliLevel
	}
	return slog.LevelWarn
}

func (f *LoggerFactory) fileLevel() slog.Level {
	if f.config.Logging.Level != "" {
		return LevelFromString(f.config.Logging.Level)
	}
	return slog.LevelInfo
}

// Close closes all open log files.
func (f *LoggerFactory) Close() error {
	var firstErr error
	for _, c := range f.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.closers = nil
	return firstErr
}
