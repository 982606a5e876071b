package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bianoble/agpm/pkg/agpm"
)

var pruneDryRun bool

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove bundles no longer reachable from agpm.yaml",
	Long: `Finds bundles that are locked or installed but that no entry in agpm.yaml
reaches any more, for example after an entry was deleted by hand, and
removes them along with their files.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		report, err := client.Prune(cmd.Context(), agpm.PruneOptions{DryRun: pruneDryRun})
		if err != nil {
			return err
		}
		printUninstall(report)
		return nil
	},
}

func init() {
	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", false, "show what would be removed without changing anything")
	rootCmd.AddCommand(pruneCmd)
}
