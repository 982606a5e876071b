package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bianoble/agpm/internal/engine"
	"github.com/bianoble/agpm/pkg/agpm"
)

var (
	installPlatforms []string
	installFrozen    bool
	installDryRun    bool
	installUpdate    bool
	installForce     bool
)

var installCmd = &cobra.Command{
	Use:   "install [source]",
	Short: "Install a bundle, or every bundle in agpm.yaml",
	Long: `Resolves the bundles listed in agpm.yaml, plus SOURCE if given, with all
their dependencies, updates agpm.lock and installs every resource for each
target platform.

SOURCE may be a local directory (./path), GitHub shorthand
(@author/repo[:subpath][#ref]) or a git URL (https://..., git@...,
file://...). A new SOURCE is added to agpm.yaml.

Files edited since agpm installed them are skipped unless --force is given.
With --frozen the lockfile is used as-is and install fails if it would
change.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		opts := agpm.InstallOptions{
			Platforms: installPlatforms,
			Frozen:    installFrozen,
			DryRun:    installDryRun,
			Update:    installUpdate,
			Force:     installForce,
		}
		if len(args) == 1 {
			opts.Source = args[0]
		}

		report, err := client.Install(cmd.Context(), opts)
		if err != nil {
			return err
		}

		if report.DryRun {
			info("Dry run, no files written.")
		}
		for _, b := range report.Bundles {
			if b.State == engine.BundleUnchanged {
				detail("%s %s", b.Name, styled(mutedStyle, b.Source))
				continue
			}
			info("%s %s (%s)", styled(accentStyle, string(b.State)), b.Name, b.Source)
		}
		for _, c := range report.Conflicts {
			warnf("%s is provided by both %s and %s; %s wins", c.Path, c.First, c.Second, c.Second)
		}
		printFiles(report.Files)
		for _, w := range report.Warnings {
			warnf("%s", w)
		}

		info("")
		info("Install complete: %d bundles for %v, %d created, %d updated, %d unchanged, %d removed, %d skipped.",
			len(report.Bundles), report.Platforms,
			report.Count(engine.ActionCreate),
			report.Count(engine.ActionReplace)+report.Count(engine.ActionMerge),
			report.Count(engine.ActionUnchanged),
			report.Count(engine.ActionRemove),
			report.Count(engine.ActionSkipModified))
		return nil
	},
}

func init() {
	installCmd.Flags().StringSliceVarP(&installPlatforms, "platform", "p", nil, "target platform (repeatable; default from settings, then detected)")
	installCmd.Flags().BoolVar(&installFrozen, "frozen", false, "install exactly agpm.lock; fail if it is missing or out of date")
	installCmd.Flags().BoolVar(&installDryRun, "dry-run", false, "show what would change without writing files")
	installCmd.Flags().BoolVar(&installUpdate, "update", false, "re-resolve refs instead of reusing locked commits")
	installCmd.Flags().BoolVarP(&installForce, "force", "f", false, "overwrite files edited since they were installed")
	installCmd.MarkFlagsMutuallyExclusive("frozen", "update")
	rootCmd.AddCommand(installCmd)
}
