package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/linpawslitap/mds-scaling/pkg/gc"
)

var (
	gcDryRun bool
	gcMinAge time.Duration
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Delete bulk objects no file points at",
	Long: `Walk the namespace, list the bulk store and delete every bulk object
that no migrated file points at. Objects younger than --min-age are kept so
in-flight migrations are not touched.`,
	Args: cobra.NoArgs,
	RunE: runGC,
}

func init() {
	gcCmd.Flags().BoolVarP(&gcDryRun, "dry-run", "n", false, "Only report what would be deleted")
	gcCmd.Flags().DurationVar(&gcMinAge, "min-age", 0, "Keep orphans younger than this (default 1h)")
	rootCmd.AddCommand(gcCmd)
}

func runGC(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	collector, err := gc.NewCollector(s.fs.MetadataStore(), s.fs.BulkStore(), gc.Config{
		MinAge: gcMinAge,
		DryRun: gcDryRun,
	})
	if err != nil {
		return err
	}

	stats, err := collector.RunNow(s.ctx)
	if err != nil {
		return err
	}

	cmd.Printf("Pointers:  %d\n", stats.ReferencedCount)
	cmd.Printf("Objects:   %d\n", stats.ExistingCount)
	cmd.Printf("Orphaned:  %d (%d kept)\n", stats.OrphanedCount, stats.SkippedCount)
	if gcDryRun {
		cmd.Println("Dry run, nothing deleted")
		return nil
	}
	cmd.Printf("Deleted:   %d (%d bytes), %d failed\n", stats.DeletedCount, stats.ReclaimedBytes, stats.FailedCount)
	return nil
}
