package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [bundle...]",
	Short: "Check locked bundles against upstream",
	Long: `Re-resolves each locked bundle at its ref, ignoring the locked commit, and
reports which bundles would change on 'agpm install --update'. Does NOT
modify the workspace. Exit 0 if all bundles match; exit non-zero if
changes are available or a bundle cannot be fetched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		result, err := client.Verify(cmd.Context(), args)
		if err != nil {
			return err
		}

		for _, name := range result.UpToDate {
			info("  %s %-24s up to date", styled(successStyle, "✓"), name)
		}
		for _, d := range result.Changed {
			info("  %s %-24s %s → %s", styled(warningStyle, "✗"), d.Bundle, d.Before, d.After)
		}
		for _, e := range result.Errors {
			errorf("%s", e.Error())
		}

		if len(result.Changed) > 0 || len(result.Errors) > 0 {
			return fmt.Errorf("%d bundle(s) have upstream changes or failed to fetch: %w",
				len(result.Changed)+len(result.Errors), errDrift)
		}

		info("\nAll bundles match upstream.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
