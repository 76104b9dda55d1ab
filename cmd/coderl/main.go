// Command coderl scores batches of model-generated code submissions:
// it extracts code from responses, verifies it against a test harness,
// grades quality through an external oracle CLI, and writes a replayable
// episode trace plus an aggregate summary.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// isTTY checks if the current environment has a TTY available.
func isTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "coderl",
		Short: "Reward computation and grading pipeline for code RL",
		Long: "coderl scores (problem, response) episodes: code extraction, " +
			"sandboxed correctness, oracle quality grading, and reward combination.",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "Config file path")

	root.AddCommand(newRunCommand())
	root.AddCommand(newSummaryCommand())
	root.AddCommand(newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("coderl 0.3.0")
		},
	}
}

func main() {
	if !isTTY() {
		color.NoColor = true
	}
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red("error: ")+err.Error())
		os.Exit(1)
	}
}
