package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"archscan/internal/version"
)

var (
	// repoFlag is the repository to operate on (default: working directory)
	repoFlag    string
	verboseFlag int
	quietFlag   bool
	noColorFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "archscan",
	Short: "archscan - static architecture analysis",
	Long: `archscan discovers the files, classes and packages of a repository and runs a
set of inspectors over them until every node type reaches a fixed point. Inspectors
declare the tags they need and produce, so built-in and rule-based inspectors can
build on each other's findings.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColorFlag {
			color.NoColor = true
		}
	},
}

func init() {
	rootCmd.SetVersionTemplate("archscan version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&repoFlag, "repo", "C", "", "Repository root (default: current directory)")
	rootCmd.PersistentFlags().CountVarP(&verboseFlag, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Silence console logging")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "Disable colored output")
}
