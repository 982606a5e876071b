package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/bianoble/agpm/internal/engine"
	"github.com/bianoble/agpm/pkg/agpm"
)

// Output colors.
var (
	colorSuccess = lipgloss.Color("#10B981") // Green
	colorWarning = lipgloss.Color("#F59E0B") // Amber
	colorDanger  = lipgloss.Color("#EF4444") // Red
	colorMuted   = lipgloss.Color("#6B7280") // Gray
	colorAccent  = lipgloss.Color("#7C3AED") // Purple
)

var (
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)
	dangerStyle  = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	accentStyle  = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
)

// errDrift is returned by check when installed files differ from the index.
var errDrift = errors.New("installed files have drifted")

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// newClient builds a library client from the global flags.
func newClient() (*agpm.Client, error) {
	return agpm.New(agpm.Options{
		WorkspaceRoot: workspaceDir,
		ManifestPath:  manifestPath,
		LockfilePath:  lockfilePath,
		IndexPath:     indexPath,
		ConfigPath:    configPath,
		Logger:        newLogger(),
	})
}

// newLogger returns a debug-level text logger on stderr in verbose mode,
// and a logger that discards everything otherwise.
func newLogger() *slog.Logger {
	if !verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// styled renders s with style unless color is disabled.
func styled(style lipgloss.Style, s string) string {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return s
	}
	return style.Render(s)
}

// actionStyle picks the color for a file action label.
func actionStyle(a engine.Action) lipgloss.Style {
	switch a {
	case engine.ActionCreate, engine.ActionMerge, engine.ActionReplace:
		return successStyle
	case engine.ActionRemove:
		return dangerStyle
	case engine.ActionSkipModified:
		return warningStyle
	}
	return mutedStyle
}

// printFiles lists file actions; unchanged and kept files only in verbose mode.
func printFiles(files []engine.FileAction) {
	for _, f := range files {
		label := styled(actionStyle(f.Action), fmt.Sprintf("%-13s", f.Action))
		if f.Action == engine.ActionUnchanged || f.Action == engine.ActionKeep {
			detail("%s %s", label, f.Path)
			continue
		}
		info("  %s %s", label, f.Path)
	}
}

// info prints a line unless quiet mode is active.
func info(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(stdout, format+"\n", args...)
	}
}

// detail prints a line only in verbose mode.
func detail(format string, args ...any) {
	if verbose {
		fmt.Fprintf(stdout, "  "+format+"\n", args...)
	}
}

// warnf prints a warning to stderr unless quiet mode is active.
func warnf(format string, args ...any) {
	if !quiet {
		fmt.Fprintf(stderr, styled(warningStyle, "warning:")+" "+format+"\n", args...)
	}
}

// errorf prints an error message to stderr.
func errorf(format string, args ...any) {
	fmt.Fprintf(stderr, styled(dangerStyle, "error:")+" "+format+"\n", args...)
}

func humanSize(bytes int64) string {
	if bytes == 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB"}
	size := float64(bytes)
	i := 0
	for size >= 1024 && i < len(units)-1 {
		size /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d B", bytes)
	}
	return fmt.Sprintf("%.1f %s", size, units[i])
}
