package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show information about agpm settings, paths and platforms",
	Long: `Displays the agpm version, workspace state file paths, the settings files
that were read, the checkout cache directory and size, and the known
platforms (built-in and custom) with the ones detected in the workspace.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		result, err := client.Info(version)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "agpm %s\n", result.Version)
		fmt.Fprintf(out, "  workspace:     %s\n", result.Workspace)
		fmt.Fprintf(out, "  manifest:      %s\n", result.ManifestPath)
		fmt.Fprintf(out, "  lockfile:      %s (%d bundles)\n", result.LockPath, result.Bundles)
		fmt.Fprintf(out, "  index:         %s\n", result.IndexPath)
		fmt.Fprintf(out, "  cache dir:     %s\n", result.CacheDir)
		fmt.Fprintf(out, "  cache size:    %s\n", humanSize(result.CacheSize))

		if len(result.ConfigChain) > 0 {
			fmt.Fprintln(out, "  settings:")
			for _, layer := range result.ConfigChain {
				status := "not found"
				switch {
				case layer.Err != nil:
					status = "error: " + layer.Err.Error()
				case layer.Loaded:
					status = "loaded"
				}
				fmt.Fprintf(out, "    %-10s %s (%s)\n", string(layer.Level)+":", layer.Path, status)
			}
		}

		if len(result.Platforms) > 0 {
			fmt.Fprintln(out, "\nPlatforms:")
			for _, p := range result.Platforms {
				var notes string
				if p.IsCustom {
					notes += " (custom)"
				}
				if p.Detected {
					notes += styled(successStyle, " (detected)")
				}
				fmt.Fprintf(out, "  %-10s → %-12s mcp: %s%s\n", p.Name, p.Directory, p.MCPPath, notes)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
