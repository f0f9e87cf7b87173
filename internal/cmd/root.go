// Package cmd is the probe CLI: a cobra command tree over the same
// orchestrator, store, and artifacts packages the HTTP API uses.
// `probe` with no subcommand starts the HTTP API server; `probe run`
// drives a single run locally with a live TUI.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	yamlFile   string
	logLevel   string
	headless   bool
	maxPages   int
	maxRetries int

	rootCmd = &cobra.Command{
		Use:   "probe",
		Short: "Autonomous black-box web testing service",
		Long: `probe discovers a target application's surface, plans a catalog of
functional, edge-case, and security scenarios, executes them in a
scripted headless browser, and reports per-scenario status with
screenshots and video.

Run with no arguments to start the HTTP API server. Use "probe run"
for a single local run with a live terminal progress view.`,
		RunE: runServe,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "probe.toml", "TOML config file")
	rootCmd.PersistentFlags().StringVar(&yamlFile, "config-yaml", "", "optional YAML config overlay")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override configured log level")

	rootCmd.Flags().StringVar(&httpAddr, "addr", "", "override configured HTTP listen address")

	runCmd.Flags().IntVar(&maxPages, "max-pages", 0, "override configured max crawl pages")
	runCmd.Flags().IntVar(&maxRetries, "max-retries", 0, "override configured fix_tests retry bound")
	runCmd.Flags().BoolVar(&headless, "headless", true, "run the browser headless")
	runCmd.Flags().StringVar(&username, "username", "", "credential username for gated flows")
	runCmd.Flags().StringVar(&password, "password", "", "credential password for gated flows")
	runCmd.Flags().BoolVar(&noTUI, "no-tui", false, "print plain progress lines instead of the live view")

	exploreCmd.Flags().IntVar(&maxPages, "max-pages", 0, "override configured max crawl pages")
	exploreCmd.Flags().BoolVar(&headless, "headless", true, "run the browser headless")

	batchCmd.Flags().StringSliceVar(&batchTags, "tags", nil, "only run scenarios matching these tags")
	batchCmd.Flags().BoolVar(&batchStopOnFail, "stop-on-fail", false, "abort the batch on the first failing scenario")

	reportCmd.Flags().BoolVar(&reportPlain, "plain", false, "print the raw Markdown instead of rendering it")

	rootCmd.AddCommand(runCmd, exploreCmd, batchCmd, statusCmd, reportCmd, versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("probe " + version)
	},
}

// version is overwritten at build time via -ldflags.
var version = "dev"

// Execute runs the root command, exiting non-zero on failure. It is
// the sole entry point cmd/probe/main.go calls.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
