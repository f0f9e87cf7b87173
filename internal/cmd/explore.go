package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/proberun/probe/internal/explorer"
)

var exploreCmd = &cobra.Command{
	Use:   "explore [url]",
	Short: "Crawl a target and print its discovered app map, without planning or executing",
	Long: `explore runs only the Explorer stage: it crawls the target
breadth-first up to --max-pages, classifies each page and groups it
into modules, and prints the resulting app map as JSON. Useful for
inspecting what probe will plan against before committing to a full
run.

Example:
  probe explore https://staging.example.com --max-pages 30`,
	Args: cobra.ExactArgs(1),
	RunE: runExplore,
}

func runExplore(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	driver := a.newDriver(headless)
	if err := driver.Launch(ctx, ""); err != nil {
		return fmt.Errorf("launching browser: %w", err)
	}
	defer driver.Close()

	browserCtx, err := driver.NewContext(ctx, 1280, 800, false)
	if err != nil {
		return fmt.Errorf("opening browser context: %w", err)
	}
	defer browserCtx.Close()

	maxPagesArg := a.cfg.MaxPages
	if maxPages > 0 {
		maxPagesArg = maxPages
	}

	exp := explorer.New(browserCtx, a.logger)
	appMap, err := exp.Explore(ctx, args[0], maxPagesArg)
	if err != nil {
		return fmt.Errorf("exploring %s: %w", args[0], err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(appMap)
}
