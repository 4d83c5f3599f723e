package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"archscan/internal/config"
	"archscan/internal/discovery"
	"archscan/internal/engine"
	scanerrors "archscan/internal/errors"
	"archscan/internal/graph"
	"archscan/internal/inspector"
	"archscan/internal/inspectors"
	"archscan/internal/paths"
	"archscan/internal/rules"
	"archscan/internal/slogutil"
	"archscan/internal/storage"
)

// getRepoRoot returns the absolute repository root: --repo when given, otherwise the
// working directory.
func getRepoRoot() (string, error) {
	root := repoFlag
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		root = wd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return abs, nil
}

// loadConfig reads and validates the repository configuration.
func loadConfig(repoRoot string) (*config.Config, error) {
	cfg, err := config.LoadConfig(repoRoot)
	if err != nil {
		return nil, scanerrors.Wrap(scanerrors.ConfigInvalid, "load config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, scanerrors.Wrap(scanerrors.ConfigInvalid, "validate config", err)
	}
	return cfg, nil
}

// newLoggerFactory applies the global verbosity flags to a factory for repoRoot.
func newLoggerFactory(repoRoot string, cfg *config.Config) *slogutil.LoggerFactory {
	return slogutil.NewLoggerFactory(repoRoot, cfg).
		WithCLILevel(slogutil.LevelFromVerbosity(verboseFlag, quietFlag))
}

// newContext returns a context cancelled on interrupt.
func newContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// engineConfig converts the engine section of the configuration.
func engineConfig(cfg *config.Config) (engine.Config, error) {
	order, err := cfg.Engine.NodeTypes()
	if err != nil {
		return engine.Config{}, scanerrors.Wrap(scanerrors.ConfigInvalid, "engine.typeOrder", err)
	}
	return engine.Config{
		TypeOrder:         order,
		MaxPasses:         cfg.Engine.MaxPasses,
		Workers:           cfg.Engine.Workers,
		InvocationTimeout: cfg.Engine.InvocationTimeout(),
	}, nil
}

// buildInspectors returns the built-in inspectors followed by the rules from the
// configured rules file. A missing rules file is not an error.
func buildInspectors(repoRoot string, cfg *config.Config, logger *slog.Logger) ([]inspector.Inspector, error) {
	insps := inspectors.Builtins(inspectors.OptionsFromConfig(cfg.Inspectors), logger)

	if cfg.Inspectors.RulesFile == "" {
		return insps, nil
	}
	rulesPath := paths.Resolve(repoRoot, cfg.Inspectors.RulesFile)
	if _, err := os.Stat(rulesPath); errors.Is(err, os.ErrNotExist) {
		logger.Debug("No rules file", "path", rulesPath)
		return insps, nil
	}
	ruleInsps, err := rules.LoadInspectors(rulesPath)
	if err != nil {
		return nil, err
	}
	loaded := 0
	for _, insp := range ruleInsps {
		if cfg.Inspectors.IsDisabled(string(insp.Identity())) {
			continue
		}
		insps = append(insps, insp)
		loaded++
	}
	logger.Info("Rules loaded", "path", rulesPath, "rules", loaded)
	return insps, nil
}

// newEngine builds the engine for cfg.
func newEngine(repoRoot string, cfg *config.Config, logger *slog.Logger, opts ...engine.Option) (*engine.Engine, error) {
	ecfg, err := engineConfig(cfg)
	if err != nil {
		return nil, err
	}
	insps, err := buildInspectors(repoRoot, cfg, logger)
	if err != nil {
		return nil, err
	}
	return engine.New(ecfg, insps, append([]engine.Option{engine.WithLogger(logger)}, opts...)...)
}

// analysisResult is everything one analysis produced.
type analysisResult struct {
	Root      string
	Graph     *graph.Graph
	Report    *engine.Report
	Discovery discovery.Stats
	// Stored is nil when persistence is disabled.
	Stored *storage.RunRecord
}

// analyzeRepo discovers repoRoot, runs the engine over it and stores the run when
// storage is enabled. A cancelled run still returns the partial result with the error.
func analyzeRepo(ctx context.Context, repoRoot string, cfg *config.Config, logger *slog.Logger, opts ...engine.Option) (*analysisResult, error) {
	eng, err := newEngine(repoRoot, cfg, logger, opts...)
	if err != nil {
		return nil, err
	}

	scanner := discovery.NewScanner(discovery.OptionsFromConfig(cfg.Discovery), logger)
	g, err := scanner.Scan(ctx, repoRoot)
	if err != nil {
		return nil, err
	}

	rep, runErr := eng.Run(ctx, g)
	res := &analysisResult{Root: repoRoot, Graph: g, Report: rep, Discovery: scanner.Stats()}
	if runErr != nil {
		return res, runErr
	}

	if cfg.Storage.Enabled {
		db, err := openStore(repoRoot, cfg, logger)
		if err != nil {
			return res, err
		}
		defer func() { _ = db.Close() }()
		res.Stored, err = db.SaveRun(ctx, repoRoot, g, rep)
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

// openStore opens the configured run database.
func openStore(repoRoot string, cfg *config.Config, logger *slog.Logger) (*storage.DB, error) {
	path := paths.Resolve(repoRoot, cfg.Storage.Path)
	db, err := storage.Open(path, logger, storage.WithCompression(cfg.Storage.Compress))
	if err != nil {
		return nil, scanerrors.Wrap(scanerrors.StorageError, "open run store", err)
	}
	return db, nil
}

// exitCode maps an error to the process exit status: 2 for configuration problems,
// 1 otherwise.
func exitCode(err error) int {
	if scanerrors.IsConfiguration(err) {
		return 2
	}
	return 1
}
