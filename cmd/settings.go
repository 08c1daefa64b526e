package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	exportOutput string
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Export or import settings",
}

var settingsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the settings as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := settingsSvc.Export(cmd.Context())
		if err != nil {
			return err
		}
		if exportOutput == "" || exportOutput == "-" {
			_, err = os.Stdout.Write(append(data, '\n'))
			return err
		}
		if err := os.WriteFile(exportOutput, data, 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", exportOutput, err)
		}
		fmt.Printf("✓ Exported settings to %s\n", exportOutput)
		return nil
	},
}

var settingsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import settings from an export file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		summary, err := settingsSvc.Import(cmd.Context(), data)
		if err != nil {
			return err
		}

		fmt.Printf("✓ Imported %d patterns, %d filters and %d handler configurations\n",
			summary.Patterns, summary.Filters, summary.Handlers)
		if summary.Selected {
			fmt.Println("✓ Selected handler updated")
		}
		return nil
	},
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore the default settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := settingsSvc.Reset(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("✓ Settings reset to defaults")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsExportCmd, settingsImportCmd, settingsResetCmd)

	settingsExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default stdout)")
}
