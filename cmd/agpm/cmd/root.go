package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bianoble/agpm/internal/apperr"
)

// Build-time variables set via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags.
var (
	workspaceDir string
	manifestPath string
	lockfilePath string
	indexPath    string
	configPath   string
	verbose      bool
	quiet        bool
	noColor      bool
)

var rootCmd = &cobra.Command{
	Use:   "agpm",
	Short: "Package manager for AI coding-assistant bundles",
	Long: `agpm installs bundles of commands, rules, agents, skills and MCP
configuration from local directories or git repositories into a workspace,
for every AI coding assistant you use. Resolved versions are pinned in
agpm.lock; installed files are tracked in agpm.index so they can be
checked, updated and removed safely.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "agpm %s\n", version)
		fmt.Fprintf(out, "  commit:  %s\n", commit)
		fmt.Fprintf(out, "  built:   %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspaceDir, "workspace", "C", ".", "workspace root directory")
	rootCmd.PersistentFlags().StringVar(&manifestPath, "manifest", "", "path to agpm.yaml (default <workspace>/agpm.yaml)")
	rootCmd.PersistentFlags().StringVar(&lockfilePath, "lockfile", "", "path to agpm.lock (default <workspace>/agpm.lock)")
	rootCmd.PersistentFlags().StringVar(&indexPath, "index", "", "path to agpm.index (default <workspace>/agpm.index)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to project settings (default <workspace>/agpm.config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "detailed output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "minimal output (errors only)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		errorf("%v", err)
		return err
	}
	return nil
}

// Exit codes. Every error kind has its own code so scripts can react to
// specific failures.
var exitCodes = map[apperr.Kind]int{
	apperr.KindBundleNotFound:     3,
	apperr.KindCircularDependency: 4,
	apperr.KindInvalidReference:   5,
	apperr.KindLockfileOutdated:   6,
	apperr.KindLockfileMissing:    7,
	apperr.KindHashMismatch:       8,
	apperr.KindFetchFailed:        9,
	apperr.KindMergeFailed:        10,
	apperr.KindPathEscape:         11,
	apperr.KindPermissionDenied:   12,
	apperr.KindIO:                 13,
	apperr.KindInvalidManifest:    14,
}

// ExitCode maps an error returned by Execute to a process exit code:
// 0 for nil, 2 for drift reported by check, a per-kind code for agpm
// errors, and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, errDrift) {
		return 2
	}
	if code, ok := exitCodes[apperr.KindOf(err)]; ok {
		return code
	}
	return 1
}
