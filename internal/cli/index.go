package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var indexWatch bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Sync course materials into the retrieval index",
	Long: `Index walks the materials directory (one subdirectory per course) and
indexes changed files. With --watch it stays running, re-syncing on file
changes and on the configured schedule.`,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexWatch, "watch", false, "keep running and re-sync on changes")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	if !indexWatch {
		return a.indexer.Sync(ctx)
	}

	if err := a.indexer.Start(ctx, a.cfg.Materials.SyncSchedule); err != nil {
		return err
	}

	fmt.Println("watching materials; Ctrl-C to stop")
	<-ctx.Done()
	return nil
}
