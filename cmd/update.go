package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/s0up4200/torrentsnag/update"
)

var checkOnly bool

// updateCmd replaces the binary with the latest release
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update torrentsnag to the latest release",
	RunE: func(cmd *cobra.Command, args []string) error {
		u := update.NewUpdater(update.Config{
			Repository: cfg.Update.Repository,
			Version:    version,
		}, nil, logger)

		if checkOnly {
			latest, newer, err := u.Check(cmd.Context())
			if err != nil {
				return err
			}
			if newer {
				fmt.Printf("A new version is available: %s (current %s)\n", latest.Version, version)
			} else {
				fmt.Printf("✓ %s is the latest version\n", version)
			}
			return nil
		}

		updated, err := u.Run(cmd.Context())
		if err != nil {
			return err
		}
		if updated {
			fmt.Println("✓ Updated, restart torrentsnag to use the new version")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)

	updateCmd.Flags().BoolVar(&checkOnly, "check", false, "only check for a newer release")
}
