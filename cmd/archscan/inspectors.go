package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"archscan/internal/engine"
)

var inspectorsFormat string

var inspectorsCmd = &cobra.Command{
	Use:   "inspectors",
	Short: "List the inspectors an analysis would run",
	Long: `List every enabled inspector, built-in and rule based, in the order the engine
schedules them. REQUIRES shows the resolved tag set a node needs before the
inspector runs on it.

Declaration problems (cycles, unknown prerequisites, duplicate identities) are
reported here without analyzing anything.`,
	Args: cobra.NoArgs,
	RunE: runInspectors,
}

func init() {
	inspectorsCmd.Flags().StringVar(&inspectorsFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(inspectorsCmd)
}

func runInspectors(cmd *cobra.Command, args []string) error {
	repoRoot, err := getRepoRoot()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(repoRoot)
	if err != nil {
		return err
	}
	logger := newLoggerFactory(repoRoot, cfg).ConsoleLogger(cmd.ErrOrStderr())

	eng, err := newEngine(repoRoot, cfg, logger)
	if err != nil {
		return err
	}
	output, err := FormatResponse(describeInspectors(eng), OutputFormat(inspectorsFormat))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), output)
	return nil
}

// InspectorsResponseCLI lists scheduled inspectors.
type InspectorsResponseCLI struct {
	Inspectors []InspectorCLI `json:"inspectors"`
}

// InspectorCLI describes one scheduled inspector.
type InspectorCLI struct {
	Order    int      `json:"order"`
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Global   bool     `json:"global"`
	After    []string `json:"after,omitempty"`
	Requires []string `json:"requires"`
	Produces []string `json:"produces"`
}

func describeInspectors(eng *engine.Engine) *InspectorsResponseCLI {
	resp := &InspectorsResponseCLI{}
	res := eng.Resolver()
	for _, t := range eng.Config().TypeOrder {
		node, global := eng.Inspectors(t)
		for _, insp := range append(node, global...) {
			desc := insp.Descriptor()
			required, _ := res.Resolve(insp.Identity())
			after := make([]string, 0, len(desc.After()))
			for _, id := range desc.After() {
				after = append(after, string(id))
			}
			resp.Inspectors = append(resp.Inspectors, InspectorCLI{
				Order:    len(resp.Inspectors) + 1,
				ID:       string(insp.Identity()),
				Type:     t.String(),
				Global:   desc.RequiresAllNodes,
				After:    after,
				Requires: []string(required),
				Produces: desc.Produces(),
			})
		}
	}
	return resp
}

