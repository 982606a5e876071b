package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify that installed files match agpm.index",
	Long: `Hashes every file agpm installed and compares it against agpm.index.
Reports files edited since installation and files that are missing.
Exit 0 if everything matches; exit 2 on drift. Suitable for CI pipelines.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		result, err := client.Check(cmd.Context())
		if err != nil {
			return err
		}

		if result.Clean {
			info("All installed files match agpm.index.")
			return nil
		}

		for _, d := range result.Drifted {
			info("  %s %s %s", styled(warningStyle, "drifted "), d.Path, styled(mutedStyle, "("+d.Bundle+")"))
			detail("expected: %s", d.Expected)
			detail("actual:   %s", d.Actual)
		}
		for _, m := range result.Missing {
			info("  %s %s", styled(dangerStyle, "missing "), m)
		}

		total := len(result.Drifted) + len(result.Missing)
		return fmt.Errorf("check failed: %d file(s) out of sync: %w", total, errDrift)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
