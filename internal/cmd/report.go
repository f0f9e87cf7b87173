package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/proberun/probe/internal/domain"
	"github.com/proberun/probe/internal/store"
	"github.com/proberun/probe/internal/tui"
)

var reportPlain bool

var reportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "Render a completed run's report.md to the terminal",
	Long: `report looks up run-id's project path in the store, reads
report.md from it, and renders it to the terminal with glamour
(--plain prints the raw Markdown instead, useful when piping to a
file or a non-color terminal).

Example:
  probe report 1f9e3c2a-...`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	run := &domain.Run{}
	ok, err := a.runStore.Get(ctx, store.KindRun, args[0], run)
	if err != nil {
		return fmt.Errorf("reading run %s: %w", args[0], err)
	}
	if !ok {
		return fmt.Errorf("run %s not found", args[0])
	}

	reportPath := run.ReportPath
	if reportPath == "" {
		reportPath = filepath.Join(run.ProjectPath, "testsprite_tests", "reports", "report.md")
	}
	data, err := os.ReadFile(reportPath)
	if err != nil {
		return fmt.Errorf("reading report: %w", err)
	}

	if reportPlain || !tui.SupportsColor() {
		fmt.Fprintln(os.Stdout, string(data))
		return nil
	}

	out, err := tui.RenderReport(string(data), tui.TerminalWidth())
	if err != nil {
		fmt.Fprintln(os.Stdout, string(data))
		return nil
	}
	fmt.Fprint(os.Stdout, out)
	return nil
}
