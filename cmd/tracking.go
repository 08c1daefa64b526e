package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	compactMaxAgeDays int
	compactMaxEntries int
)

var trackingCmd = &cobra.Command{
	Use:   "tracking",
	Short: "Inspect and maintain the record of sent torrents",
}

var trackingCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Show how many torrents are tracked",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		meta := dupTracker.Meta(ctx)

		fmt.Printf("Tracked torrents: %d (cap %d)\n", dupTracker.Count(ctx), dupTracker.MaxEntries())
		if !meta.LastCleared.IsZero() {
			fmt.Printf("Last compacted:   %s\n", meta.LastCleared.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var trackingCompactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Drop old entries and enforce the size cap",
	RunE: func(cmd *cobra.Command, args []string) error {
		maxAge := cfg.Tracking.MaxAge
		if compactMaxAgeDays > 0 {
			maxAge = time.Duration(compactMaxAgeDays) * 24 * time.Hour
		}

		removed := dupTracker.Compact(cmd.Context(), maxAge, compactMaxEntries)
		fmt.Printf("✓ Removed %d entries, %d left\n", removed, dupTracker.Count(cmd.Context()))
		return nil
	},
}

var trackingClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget every sent torrent",
	RunE: func(cmd *cobra.Command, args []string) error {
		dupTracker.ClearAll(cmd.Context())
		fmt.Println("✓ Cleared duplicate tracking")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(trackingCmd)
	trackingCmd.AddCommand(trackingCountCmd, trackingCompactCmd, trackingClearCmd)

	trackingCompactCmd.Flags().IntVar(&compactMaxAgeDays, "max-age-days", 0, "drop entries older than this many days (default tracking.max_age)")
	trackingCompactCmd.Flags().IntVar(&compactMaxEntries, "max-entries", 0, "keep at most this many entries (default from settings)")
}
