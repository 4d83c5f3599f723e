package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	scanerrors "archscan/internal/errors"
	"archscan/internal/graph"
	"archscan/internal/storage"
)

var (
	runsFormat    string
	runsLimit     int
	runsShowTypes []string
	runsShowTag   string
	runsKeep      int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored analysis runs",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id|latest>",
	Short: "Show the nodes of a stored run",
	Long: `Show the final tags, metrics and errors of every node of a stored run.

Examples:
  archscan runs show latest
  archscan runs show latest --type=package
  archscan runs show 3f2a... --tag=coupling.hub --format=json`,
	Args: cobra.ExactArgs(1),
	RunE: runRunsShow,
}

var runsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest runs",
	Args:  cobra.NoArgs,
	RunE:  runRunsPrune,
}

func init() {
	runsCmd.PersistentFlags().StringVar(&runsFormat, "format", "human", "Output format (json, human)")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum runs to list (0 for all)")
	runsShowCmd.Flags().StringSliceVar(&runsShowTypes, "type", nil, "Only show nodes of these types")
	runsShowCmd.Flags().StringVar(&runsShowTag, "tag", "", "Only show nodes carrying this tag")
	runsPruneCmd.Flags().IntVar(&runsKeep, "keep", 10, "Number of runs to keep")
	runsCmd.AddCommand(runsShowCmd, runsPruneCmd)
	rootCmd.AddCommand(runsCmd)
}

// withStore opens the configured run store for the duration of fn.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, db *storage.DB) error) error {
	repoRoot, err := getRepoRoot()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(repoRoot)
	if err != nil {
		return err
	}
	logger := newLoggerFactory(repoRoot, cfg).ConsoleLogger(cmd.ErrOrStderr())
	db, err := openStore(repoRoot, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := newContext()
	defer cancel()
	return fn(ctx, db)
}

// RunsResponseCLI lists stored runs.
type RunsResponseCLI struct {
	Runs []storage.RunRecord `json:"runs"`
}

func runRunsList(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, db *storage.DB) error {
		runs, err := db.ListRuns(ctx, runsLimit)
		if err != nil {
			return err
		}
		return printResponse(cmd, &RunsResponseCLI{Runs: runs})
	})
}

// RunDetailResponseCLI is one stored run with its nodes.
type RunDetailResponseCLI struct {
	Run   storage.RunRecord    `json:"run"`
	Nodes []storage.NodeRecord `json:"nodes"`
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	types, err := graph.ParseNodeTypes(runsShowTypes)
	if err != nil {
		return scanerrors.Wrap(scanerrors.ConfigInvalid, "--type", err)
	}
	return withStore(cmd, func(ctx context.Context, db *storage.DB) error {
		runID, err := resolveRunID(ctx, db, args[0])
		if err != nil {
			return err
		}
		rec, _, err := db.GetRun(ctx, runID)
		if err != nil {
			return err
		}
		nodes, err := db.LoadNodes(ctx, runID, types...)
		if err != nil {
			return err
		}
		return printResponse(cmd, &RunDetailResponseCLI{Run: *rec, Nodes: filterByTag(nodes, runsShowTag)})
	})
}

func runRunsPrune(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, db *storage.DB) error {
		removed, err := db.Prune(ctx, runsKeep)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d runs\n", removed)
		return nil
	})
}

// resolveRunID maps "latest" to the newest stored run.
func resolveRunID(ctx context.Context, db *storage.DB, arg string) (string, error) {
	if arg != "latest" {
		return arg, nil
	}
	latest, err := db.LatestRun(ctx)
	if err != nil {
		return "", err
	}
	if latest == nil {
		return "", scanerrors.Newf(scanerrors.StorageError, "no stored runs; run 'archscan analyze' first")
	}
	return latest.RunID, nil
}

func filterByTag(nodes []storage.NodeRecord, tag string) []storage.NodeRecord {
	if tag == "" {
		return nodes
	}
	var out []storage.NodeRecord
	for _, n := range nodes {
		for _, t := range n.Tags {
			if t == tag {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

func printResponse(cmd *cobra.Command, resp interface{}) error {
	output, err := FormatResponse(resp, OutputFormat(runsFormat))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), output)
	return nil
}

