package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"archscan/internal/config"
	"archscan/internal/discovery"
	"archscan/internal/engine"
	"archscan/internal/graph"
	"archscan/internal/paths"
)

var (
	analyzeFormat    string
	analyzeNoStore   bool
	analyzeWorkers   int
	analyzeMaxPasses int
	analyzeRules     string
	analyzeDisable   []string
	analyzeTimeoutMs int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze the repository and store the run",
	Long: `Discover the repository's files, classes and packages, then run every enabled
inspector until each node type converges.

The run is stored in the run database unless storage is disabled, so it can be
inspected later with 'archscan runs'.

Examples:
  archscan analyze
  archscan analyze --format=json --no-store
  archscan analyze --workers=8 --disable=centrality
  archscan -C ../service analyze --rules=rules.yaml`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "human", "Output format (json, human)")
	analyzeCmd.Flags().BoolVar(&analyzeNoStore, "no-store", false, "Do not persist the run")
	analyzeCmd.Flags().IntVar(&analyzeWorkers, "workers", 0, "Concurrent node invocations per pass (0 uses config)")
	analyzeCmd.Flags().IntVar(&analyzeMaxPasses, "max-passes", 0, "Pass limit per node type (0 uses config)")
	analyzeCmd.Flags().StringVar(&analyzeRules, "rules", "", "Rules file (default from config)")
	analyzeCmd.Flags().StringSliceVar(&analyzeDisable, "disable", nil, "Inspectors to disable")
	analyzeCmd.Flags().IntVar(&analyzeTimeoutMs, "timeout-ms", -1, "Per-invocation timeout in milliseconds (-1 uses config, 0 disables)")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	start := time.Now()
	repoRoot, err := getRepoRoot()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(repoRoot)
	if err != nil {
		return err
	}
	applyAnalyzeFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	if _, err := paths.EnsureDataDir(repoRoot); err != nil {
		return fmt.Errorf("failed to create %s: %w", paths.DataDirName, err)
	}
	factory := newLoggerFactory(repoRoot, cfg)
	defer func() { _ = factory.Close() }()
	logger, err := factory.AnalyzeLogger(os.Stderr)
	if err != nil {
		logger.Warn("Analysis log unavailable", "error", err.Error())
	}

	ctx, cancel := newContext()
	defer cancel()

	res, err := analyzeRepo(ctx, repoRoot, cfg, logger, engine.WithObserver(engine.ObserverFuncs{
		OnPass: func(stats engine.PassStats) {
			logger.Debug("Pass completed",
				"type", stats.Type.String(),
				"phase", stats.Phase.String(),
				"pass", stats.Pass,
				"invocations", stats.Invocations,
				"writes", stats.Writes,
			)
		},
	}))
	if res == nil {
		return err
	}

	resp := convertAnalyzeResponse(res, cfg, time.Since(start))
	output, ferr := FormatResponse(resp, OutputFormat(analyzeFormat))
	if ferr != nil {
		return ferr
	}
	fmt.Println(output)
	return err
}

func applyAnalyzeFlags(cfg *config.Config) {
	if analyzeNoStore {
		cfg.Storage.Enabled = false
	}
	if analyzeWorkers > 0 {
		cfg.Engine.Workers = analyzeWorkers
	}
	if analyzeMaxPasses > 0 {
		cfg.Engine.MaxPasses = analyzeMaxPasses
	}
	if analyzeRules != "" {
		cfg.Inspectors.RulesFile = analyzeRules
	}
	if analyzeTimeoutMs >= 0 {
		cfg.Engine.InvocationTimeoutMs = analyzeTimeoutMs
	}
	cfg.Inspectors.Disabled = append(cfg.Inspectors.Disabled, analyzeDisable...)
}

// AnalyzeResponseCLI is the output of the analyze command.
type AnalyzeResponseCLI struct {
	RunID     string                   `json:"runId"`
	Root      string                   `json:"root"`
	Converged bool                     `json:"converged"`
	Duration  string                   `json:"duration"`
	Discovery discovery.Stats          `json:"discovery"`
	Types     []engine.TypeSummary     `json:"types"`
	Tags      []TagCountCLI            `json:"tags"`
	Warnings  []engine.Warning         `json:"warnings"`
	Errors    []engine.InvocationError `json:"errors"`
	Stored    bool                     `json:"stored"`
	StorePath string                   `json:"storePath,omitempty"`
}

// TagCountCLI is the number of nodes of one type carrying a tag.
type TagCountCLI struct {
	Type  string `json:"type"`
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

func convertAnalyzeResponse(res *analysisResult, cfg *config.Config, elapsed time.Duration) *AnalyzeResponseCLI {
	rep := res.Report
	resp := &AnalyzeResponseCLI{
		RunID:     rep.RunID,
		Root:      res.Root,
		Converged: rep.Converged(),
		Duration:  elapsed.Round(time.Millisecond).String(),
		Discovery: res.Discovery,
		Types:     rep.Types,
		Tags:      tagCounts(res.Graph),
		Warnings:  rep.Warnings,
		Errors:    rep.Errors,
		Stored:    res.Stored != nil,
	}
	if resp.Stored {
		resp.StorePath = paths.Resolve(res.Root, cfg.Storage.Path)
	}
	return resp
}

// tagCounts lists tag frequencies per node type, in type order then by tag.
func tagCounts(g *graph.Graph) []TagCountCLI {
	var out []TagCountCLI
	for _, t := range g.NodeTypes() {
		counts := g.TagCounts(t)
		tags := make([]string, 0, len(counts))
		for tag := range counts {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		for _, tag := range tags {
			out = append(out, TagCountCLI{Type: t.String(), Tag: tag, Count: counts[tag]})
		}
	}
	return out
}
