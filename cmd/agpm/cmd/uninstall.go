package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/bianoble/agpm/internal/engine"
	"github.com/bianoble/agpm/pkg/agpm"
)

var (
	uninstallAll    bool
	uninstallDryRun bool
	uninstallForce  bool
)

var uninstallCmd = &cobra.Command{
	Use:     "uninstall <bundle | @scope>",
	Aliases: []string{"remove", "rm"},
	Short:   "Remove a bundle and the dependencies nothing else needs",
	Long: `Removes the named bundle from agpm.yaml, agpm.lock and agpm.index and
deletes the files it installed. Dependencies are removed too unless another
installed bundle, or agpm.yaml itself, still needs them. Files that another
bundle also installed are kept.

"@scope" (or "@scope/", or any prefix with --all) removes every bundle whose
name starts with "@scope/".

Files edited since installation are deleted with a warning. User files that
agpm merged into keep the user's own content.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		report, err := client.Uninstall(cmd.Context(), agpm.UninstallOptions{
			Target:      args[0],
			AllMatching: uninstallAll,
			DryRun:      uninstallDryRun,
			Force:       uninstallForce,
		})
		if err != nil {
			return err
		}
		printUninstall(report)
		return nil
	},
}

// printUninstall reports an uninstall or prune.
func printUninstall(report *agpm.UninstallReport) {
	if report.Message != "" {
		info("%s", report.Message)
		return
	}
	if report.DryRun {
		info("Dry run, no files removed.")
	}
	for _, w := range report.Warnings {
		warnf("%s", w)
	}
	if len(report.Targets) > 0 {
		info("%s %s", styled(dangerStyle, "removing"), strings.Join(report.Targets, ", "))
	}
	if len(report.Cascaded) > 0 {
		info("%s %s", styled(dangerStyle, "removing"), strings.Join(report.Cascaded, ", ")+styled(mutedStyle, " (no longer needed)"))
	}
	printFiles(report.Files)

	info("")
	info("Removed %d bundles: %d files deleted, %d kept, %d skipped.",
		len(report.Removed()),
		report.Count(engine.ActionRemove),
		report.Count(engine.ActionKeep)+report.Count(engine.ActionMerge)+report.Count(engine.ActionReplace),
		report.Count(engine.ActionSkipModified))
}

func init() {
	uninstallCmd.Flags().BoolVar(&uninstallAll, "all", false, "treat the argument as a scope and remove every matching bundle")
	uninstallCmd.Flags().BoolVar(&uninstallDryRun, "dry-run", false, "show what would be removed without changing anything")
	uninstallCmd.Flags().BoolVarP(&uninstallForce, "force", "f", false, "skip dependent warnings")
	rootCmd.AddCommand(uninstallCmd)
}
