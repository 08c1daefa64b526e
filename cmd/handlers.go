package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/s0up4200/torrentsnag/backend"
	"github.com/s0up4200/torrentsnag/handlers"
	"github.com/s0up4200/torrentsnag/settings"
)

var (
	testAll bool

	handlerURL      string
	handlerUser     string
	handlerPass     string
	handlerLabel    string
	handlerDir      string
	handlerBasicU   string
	handlerBasicP   string
	handlerTimeout  time.Duration
	handlerActivate bool
)

// handlersCmd lists the handler kinds
var handlersCmd = &cobra.Command{
	Use:   "handlers",
	Short: "List the available handlers and their configuration",
	RunE:  runHandlers,
}

// handlersSetCmd updates the configuration of one handler
var handlersSetCmd = &cobra.Command{
	Use:   "set <type>",
	Short: "Configure a handler",
	Args:  cobra.ExactArgs(1),
	RunE:  runHandlersSet,
}

// selectCmd chooses the dispatch target
var selectCmd = &cobra.Command{
	Use:   "select <type>",
	Short: "Select the handler torrents are sent to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := settingsSvc.SelectHandler(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Selected %s\n", args[0])
		return nil
	},
}

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test [type]",
	Short: "Test the connection to a handler",
	Long:  `Test the connection to the selected handler, the given one, or with --all every configured handler.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTest,
}

func init() {
	rootCmd.AddCommand(handlersCmd)
	rootCmd.AddCommand(selectCmd)
	rootCmd.AddCommand(testCmd)
	handlersCmd.AddCommand(handlersSetCmd)

	testCmd.Flags().BoolVar(&testAll, "all", false, "test every configured handler")

	f := handlersSetCmd.Flags()
	f.StringVar(&handlerURL, "url", "", "Web UI or RPC URL")
	f.StringVar(&handlerUser, "username", "", "username")
	f.StringVar(&handlerPass, "password", "", "password")
	f.StringVar(&handlerLabel, "label", "", "default label or category")
	f.StringVar(&handlerDir, "dir", "", "download directory (download handler)")
	f.StringVar(&handlerBasicU, "basic-user", "", "HTTP basic auth user in front of the Web UI")
	f.StringVar(&handlerBasicP, "basic-pass", "", "HTTP basic auth password")
	f.DurationVar(&handlerTimeout, "timeout", 0, "request timeout")
	f.BoolVar(&handlerActivate, "select", false, "also select this handler")
}

func runHandlers(cmd *cobra.Command, args []string) error {
	current, err := settingsSvc.Get(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("%-3s %-14s %-18s %s\n", "", "TYPE", "NAME", "URL / DIRECTORY")
	fmt.Println(strings.Repeat("━", 80))
	for _, d := range handlers.Available() {
		marker := ""
		if d.Type == current.SelectedHandler {
			marker = "→"
		}
		hc := current.Handlers[d.Type]
		target := hc.URL
		if d.Type == settings.KindDownload {
			target = hc.DownloadDir
		}
		fmt.Printf("%-3s %-14s %-18s %s\n", marker, d.Type, d.Name, target)
	}
	return nil
}

func runHandlersSet(cmd *cobra.Command, args []string) error {
	kind := args[0]
	flags := cmd.Flags()

	err := settingsSvc.UpdateHandler(cmd.Context(), kind, func(hc *settings.HandlerConfig) {
		if flags.Changed("url") {
			hc.URL = handlerURL
		}
		if flags.Changed("username") {
			hc.Username = handlerUser
		}
		if flags.Changed("password") {
			hc.Password = handlerPass
		}
		if flags.Changed("label") {
			hc.DefaultLabel = handlerLabel
		}
		if flags.Changed("dir") {
			hc.DownloadDir = handlerDir
		}
		if flags.Changed("basic-user") {
			hc.BasicUser = handlerBasicU
		}
		if flags.Changed("basic-pass") {
			hc.BasicPass = handlerBasicP
		}
		if flags.Changed("timeout") {
			hc.Timeout = int(handlerTimeout.Milliseconds())
		}
	})
	if err != nil {
		return err
	}

	if handlerActivate {
		if err := settingsSvc.SelectHandler(cmd.Context(), kind); err != nil {
			return err
		}
	}

	fmt.Printf("✓ Saved %s configuration\n", kind)
	return nil
}

func runTest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	current, err := settingsSvc.Get(ctx)
	if err != nil {
		return err
	}

	var kinds []string
	switch {
	case testAll:
		for kind := range current.Handlers {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
	case len(args) == 1:
		kinds = []string{args[0]}
	default:
		kinds = []string{current.SelectedHandler}
	}

	results := make([]*backend.TestResult, len(kinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		g.Go(func() error {
			results[i] = orch.TestHandler(gctx, kind, nil)
			return nil
		})
	}
	_ = g.Wait()

	var failed int
	for i, kind := range kinds {
		res := results[i]
		fmt.Printf("Testing %s...\n", kind)
		if res.Success {
			fmt.Printf("✓ %s\n", res.Message)
			continue
		}
		failed++
		fmt.Printf("✗ %s\n", res.Message)
		printSuggestions(res.Suggestions)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d connection tests failed", failed, len(kinds))
	}
	return nil
}
