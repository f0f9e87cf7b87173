package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/proberun/probe/internal/domain"
	"github.com/proberun/probe/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Print the persisted state of a run",
	Long: `status reads a run's record directly from the configured store
(the same store the HTTP API and orchestrator write through) and
prints its status, completed stages, and error log as JSON. Live
per-scenario progress is only available while the run's own process
is still serving it; once completed, this is the full history.

Example:
  probe status 1f9e3c2a-...`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}
