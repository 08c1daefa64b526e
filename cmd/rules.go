package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s0up4200/torrentsnag/matcher"
	"github.com/s0up4200/torrentsnag/settings"
)

// ruleOps are the settings operations of one rule group.
type ruleOps struct {
	list   func(*settings.Settings) []matcher.Rule
	add    func(ctx context.Context, name, regex string) (matcher.Rule, error)
	update func(ctx context.Context, id string, u settings.RuleUpdate) error
	remove func(ctx context.Context, id string) error
}

var patternsCmd = newRuleCommand("patterns", "Manage the patterns that select torrent links", ruleOps{
	list: func(s *settings.Settings) []matcher.Rule { return s.Patterns },
	add:  func(ctx context.Context, n, r string) (matcher.Rule, error) { return settingsSvc.AddPattern(ctx, n, r) },
	update: func(ctx context.Context, id string, u settings.RuleUpdate) error {
		return settingsSvc.UpdatePattern(ctx, id, u)
	},
	remove: func(ctx context.Context, id string) error { return settingsSvc.RemovePattern(ctx, id) },
})

var filtersCmd = newRuleCommand("filters", "Manage the filters that exclude links", ruleOps{
	list: func(s *settings.Settings) []matcher.Rule { return s.Filters },
	add:  func(ctx context.Context, n, r string) (matcher.Rule, error) { return settingsSvc.AddFilter(ctx, n, r) },
	update: func(ctx context.Context, id string, u settings.RuleUpdate) error {
		return settingsSvc.UpdateFilter(ctx, id, u)
	},
	remove: func(ctx context.Context, id string) error { return settingsSvc.RemoveFilter(ctx, id) },
})

func init() {
	rootCmd.AddCommand(patternsCmd)
	rootCmd.AddCommand(filtersCmd)
}

func newRuleCommand(use, short string, ops ruleOps) *cobra.Command {
	root := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := settingsSvc.Get(cmd.Context())
			if err != nil {
				return err
			}
			printRules(ops.list(current))
			return nil
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "add <name> <regex>",
		Short: "Add a custom rule",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rule, err := ops.add(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("✓ Added %s (%s)\n", rule.Name, rule.ID)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a custom rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ops.remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("✓ Removed %s\n", args[0])
			return nil
		},
	})

	for _, enabled := range []bool{true, false} {
		verb := "enable"
		if !enabled {
			verb = "disable"
		}
		root.AddCommand(&cobra.Command{
			Use:   verb + " <id>",
			Short: strings.ToUpper(verb[:1]) + verb[1:] + " a rule",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := ops.update(cmd.Context(), args[0], settings.RuleUpdate{Enabled: &enabled}); err != nil {
					return err
				}
				fmt.Printf("✓ %sd %s\n", strings.ToUpper(verb[:1])+verb[1:], args[0])
				return nil
			},
		})
	}

	return root
}

func printRules(rules []matcher.Rule) {
	fmt.Printf("%-40s %-28s %-8s %s\n", "ID", "NAME", "ENABLED", "REGEX")
	fmt.Println(strings.Repeat("━", 100))
	for _, r := range rules {
		name := r.Name
		if r.Builtin {
			name += " *"
		}
		fmt.Printf("%-40s %-28s %-8t %s\n", r.ID, truncate(name, 28), r.Enabled, r.Regex)
	}
}
