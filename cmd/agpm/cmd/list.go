package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list [bundle...]",
	Aliases: []string{"ls", "status"},
	Short:   "Show installed bundles and their state",
	Long: `Shows every locked bundle, dependencies first, with its source, pinned
ref or commit, the platforms it is installed for and its state (installed,
modified, missing, not-installed). Bundles listed directly in agpm.yaml are
marked with *.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		statuses, err := client.List(cmd.Context(), args)
		if err != nil {
			return err
		}

		if len(statuses) == 0 {
			info("No bundles installed.")
			return nil
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "  %-24s %-16s %-18s %s\n", "BUNDLE", "PINNED AT", "PLATFORMS", "STATE")
		for _, s := range statuses {
			marker := " "
			if s.Direct {
				marker = "*"
			}
			platforms := strings.Join(s.Platforms, ",")
			if platforms == "" {
				platforms = "-"
			}
			state := s.State
			switch state {
			case "installed":
				state = styled(successStyle, state)
			case "modified":
				state = styled(warningStyle, state)
			case "missing", "not-installed":
				state = styled(dangerStyle, state)
			}
			fmt.Fprintf(out, "%s %-24s %-16s %-18s %s\n", marker, s.Name, s.PinnedAt, platforms, state)
			detail("  source: %s, %d files", s.Source, s.Files)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
