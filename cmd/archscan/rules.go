package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"archscan/internal/paths"
	"archscan/internal/rules"
)

var rulesInitForce bool

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage declarative inspector rules",
}

var rulesInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter rules file",
	Long: `Write a commented starter rules file to the configured rules path
(default .archscan/rules.toml). Existing files are kept unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: runRulesInit,
}

var rulesCheckCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Validate a rules file",
	Long: `Parse and compile a rules file and report every rule it defines. Without an
argument the configured rules file is checked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRulesCheck,
}

func init() {
	rulesInitCmd.Flags().BoolVar(&rulesInitForce, "force", false, "Overwrite an existing rules file")
	rulesCmd.AddCommand(rulesInitCmd, rulesCheckCmd)
	rootCmd.AddCommand(rulesCmd)
}

// configuredRulesPath returns the absolute rules file path for the repository.
func configuredRulesPath() (string, error) {
	repoRoot, err := getRepoRoot()
	if err != nil {
		return "", err
	}
	cfg, err := loadConfig(repoRoot)
	if err != nil {
		return "", err
	}
	if cfg.Inspectors.RulesFile == "" {
		return paths.RulesPath(repoRoot), nil
	}
	return paths.Resolve(repoRoot, cfg.Inspectors.RulesFile), nil
}

func runRulesInit(cmd *cobra.Command, args []string) error {
	path, err := configuredRulesPath()
	if err != nil {
		return err
	}
	if err := rules.InitFile(path, rulesInitForce); err != nil {
		return err
	}
	okColor.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func runRulesCheck(cmd *cobra.Command, args []string) error {
	var path string
	if len(args) == 1 {
		path = args[0]
	} else {
		p, err := configuredRulesPath()
		if err != nil {
			return err
		}
		path = p
	}

	insps, err := rules.LoadInspectors(path)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, insp := range insps {
		ri, ok := insp.(*rules.Inspector)
		if !ok {
			continue
		}
		r := ri.Rule()
		fmt.Fprintf(out, "%s  %s  -> %s\n", okColor.Sprint(r.ID), dimColor.Sprint(r.Target), joinOrDash(insp.Descriptor().Produces()))
	}
	fmt.Fprintf(out, "%d rules OK\n", len(insps))
	return nil
}
