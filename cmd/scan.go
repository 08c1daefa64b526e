package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s0up4200/torrentsnag/orchestrator"
	"github.com/s0up4200/torrentsnag/page"
)

var (
	scanSend bool
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan <url> [url...]",
	Short: "Scan web pages for torrent links",
	Long: `Fetch the given pages, match their links against the enabled patterns and filters,
and list the torrents that were not sent before. With --send every new link is
dispatched to the selected handler.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().BoolVar(&scanSend, "send", false, "send every new link to the selected handler")
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	results := fetcher.FetchAll(ctx, args)

	var failed int
	for _, res := range results {
		if res.Err != nil {
			fmt.Printf("✗ %s: %v\n", res.URL, res.Err)
			failed++
			continue
		}
		if err := scanPage(cmd, res); err != nil {
			return err
		}
	}

	if failed == len(results) {
		return fmt.Errorf("no page could be fetched")
	}
	return nil
}

func scanPage(cmd *cobra.Command, res page.Result) error {
	ctx := cmd.Context()
	doc := res.Document

	sess := sessions.Session(res.URL)
	sess.Navigate(doc.URL)
	if _, err := sess.Scan(ctx, doc.Links); err != nil {
		return fmt.Errorf("failed to scan %s: %w", res.URL, err)
	}

	candidates := sess.Candidates()
	title := doc.Title
	if title == "" {
		title = doc.URL
	}

	fmt.Printf("\n%s\n", title)
	fmt.Println(strings.Repeat("-", 80))
	if len(candidates) == 0 {
		fmt.Println("No new torrents found on this page.")
		return nil
	}

	for i, c := range candidates {
		text := c.ElementText
		if text == "" {
			text = "(no text)"
		}
		fmt.Printf("%-4d %-40s [%s]\n", i+1, truncate(text, 40), c.PatternID)
		fmt.Printf("     %s\n", c.URL)
	}

	if !scanSend {
		return nil
	}

	result, err := orch.SendAll(ctx, res.URL)
	if err != nil && !errors.Is(err, orchestrator.ErrNoLinks) {
		return err
	}
	if result != nil {
		printResult(result)
	}
	return nil
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
