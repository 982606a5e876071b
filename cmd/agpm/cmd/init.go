package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bianoble/agpm/internal/manifest"
)

var (
	initForce bool
	initName  string
)

// initTemplate is the default agpm.yaml scaffold. %s is the workspace name.
const initTemplate = `# agpm workspace manifest
# Bundles listed here are installed by 'agpm install'.
name: %s

bundles: []
  # Git repository on GitHub, pinned to a tag
  # - name: team-rules
  #   url: https://github.com/your-org/agent-rules
  #   ref: v1.2.0
  #   subpath: rules

  # Local directory, relative to this file
  # - name: local-rules
  #   path: ./agents/rules

# Tool settings (platforms, merge strategies, custom platforms) live in
# agpm.config.yaml next to this file.
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter agpm.yaml",
	Long: `Creates agpm.yaml in the workspace with a commented template showing git
and local bundle entries. The workspace name defaults to the directory name.

Use --force to overwrite an existing manifest.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := filepath.Abs(workspaceDir)
		if err != nil {
			return fmt.Errorf("resolving workspace: %w", err)
		}
		outPath := manifestPath
		switch {
		case outPath == "":
			outPath = filepath.Join(root, manifest.FileName)
		case !filepath.IsAbs(outPath):
			outPath = filepath.Join(root, outPath)
		}

		if !initForce {
			if _, err := os.Stat(outPath); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", outPath)
			}
		}

		name := initName
		if name == "" {
			name = filepath.Base(root)
		}
		content := fmt.Sprintf(initTemplate, quoteName(name))
		if _, err := manifest.Parse([]byte(content)); err != nil {
			return fmt.Errorf("invalid workspace name %q: %w", name, err)
		}

		if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}
		if err := os.WriteFile(outPath, []byte(content), 0644); err != nil {
			return fmt.Errorf("writing manifest: %w", err)
		}

		info("Created %s", outPath)
		info("")
		info("Next steps:")
		info("  1. Run 'agpm install <source>' to add a bundle")
		info("  2. Commit agpm.yaml and agpm.lock")
		return nil
	},
}

// quoteName quotes names YAML would otherwise misread, like "@scope/x".
func quoteName(name string) string {
	if strings.ContainsAny(name, "@:#{}[]&*!|>'\"%`,") || strings.TrimSpace(name) != name {
		return "\"" + strings.ReplaceAll(name, "\"", "\\\"") + "\""
	}
	return name
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing agpm.yaml")
	initCmd.Flags().StringVar(&initName, "name", "", "workspace name (default: directory name)")
	rootCmd.AddCommand(initCmd)
}
