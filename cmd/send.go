package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/s0up4200/torrentsnag/backend"
)

var (
	sendLabels []string
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send <url> [url...]",
	Short: "Send torrent links to the selected handler",
	Long: `Send magnet links, .torrent URLs or download page URLs to the selected handler.
Every link is recorded, so later scans will not offer it again.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringArrayVarP(&sendLabels, "label", "l", nil, "label for the link at the same position (repeatable)")
}

func runSend(cmd *cobra.Command, args []string) error {
	result, err := orch.DispatchSelected(cmd.Context(), args, "", sendLabels)
	if err != nil {
		printSuggestions(backend.SuggestionsFor(err))
		return err
	}

	printResult(result)
	if !result.Success {
		return fmt.Errorf("no torrent was added")
	}
	return nil
}

func printResult(result *backend.Result) {
	for _, item := range result.Results {
		if item.Success {
			line := "✓ " + item.URL
			if item.Label != "" {
				line += " [" + item.Label + "]"
			}
			fmt.Println(line)
			continue
		}
		fmt.Printf("✗ %s: %s\n", item.URL, item.Error)
	}
	fmt.Printf("\nAdded %d of %d torrents\n", result.Count, result.Total)
}

func printSuggestions(suggestions []string) {
	if len(suggestions) == 0 {
		return
	}
	fmt.Println("\nSuggestions:")
	for _, s := range suggestions {
		fmt.Printf("  • %s\n", s)
	}
}
