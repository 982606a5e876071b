// Package agpm provides the public Go library API for agpm.
//
// agpm installs bundles of AI coding-assistant resources (commands, rules,
// agents, skills, MCP configs) from local directories or git repositories
// into a workspace, for one or more assistant platforms. This package
// exposes a Client for embedding agpm in other Go programs.
//
// # Basic Usage
//
//	client, err := agpm.New(agpm.Options{
//	    WorkspaceRoot: "/path/to/project",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Add a bundle and install everything in agpm.yaml
//	report, err := client.Install(ctx, agpm.InstallOptions{Source: "@acme/rules"})
//
//	// Check for local edits to installed files
//	check, err := client.Check(ctx)
package agpm

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/bianoble/agpm/internal/cache"
	"github.com/bianoble/agpm/internal/config"
	"github.com/bianoble/agpm/internal/engine"
	"github.com/bianoble/agpm/internal/merge"
	"github.com/bianoble/agpm/internal/source"
	"github.com/bianoble/agpm/internal/target"
	"github.com/bianoble/agpm/internal/workspace"
)

// Installer resolves bundles and installs their resources.
type Installer interface {
	Install(ctx context.Context, opts InstallOptions) (*InstallReport, error)
}

// Uninstaller removes bundles and the files only they installed.
type Uninstaller interface {
	Uninstall(ctx context.Context, opts UninstallOptions) (*UninstallReport, error)
}

// Checker verifies installed files against the index.
type Checker interface {
	Check(ctx context.Context) (*CheckReport, error)
}

// Lister reports the state of locked bundles.
type Lister interface {
	List(ctx context.Context, names []string) ([]BundleStatus, error)
}

// Options configures an agpm client.
type Options struct {
	// WorkspaceRoot is the directory holding agpm.yaml. Default: ".".
	WorkspaceRoot string

	// ManifestPath, LockfilePath and IndexPath override the state file
	// locations. Relative paths are taken from WorkspaceRoot.
	ManifestPath string
	LockfilePath string
	IndexPath    string

	// ConfigPath is the project-level settings file.
	// Default: <WorkspaceRoot>/agpm.config.yaml.
	ConfigPath string

	// NoInherit skips the system and user settings layers.
	NoInherit bool

	// CacheDir overrides the git checkout cache directory.
	CacheDir string

	// Logger receives diagnostic logs. Nil discards them.
	Logger *slog.Logger
}

// Client is the main entry point for the agpm library.
// It implements Installer, Uninstaller, Checker, and Lister.
type Client struct {
	root      string
	paths     workspace.Paths
	config    *config.Config
	layers    []config.LayerInfo
	cache     *cache.Cache
	platforms *target.PlatformMap
	fetcher   *source.Registry
	logger    *slog.Logger
}

// New creates a new agpm Client. Settings files are read once here.
func New(opts Options) (*Client, error) {
	root := opts.WorkspaceRoot
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root: %w", err)
	}

	cfgPath := opts.ConfigPath
	if cfgPath == "" {
		cfgPath = filepath.Join(abs, config.FileName)
	}
	cfg, layers, err := config.LoadLayered(config.DiscoverOptions{
		ProjectPath: cfgPath,
		NoInherit:   opts.NoInherit || config.EnvNoInherit(),
	})
	if err != nil {
		return nil, err
	}

	c, err := cache.New(cacheDir(opts.CacheDir, cfg))
	if err != nil {
		return nil, fmt.Errorf("initializing cache: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	reg := source.NewRegistry()
	reg.Register(source.KindDir, &source.LocalFetcher{WorkspaceRoot: abs})
	reg.Register(source.KindGit, &source.GitFetcher{Cache: c})

	return &Client{
		root: abs,
		paths: workspace.Paths{
			Manifest: opts.ManifestPath,
			Lock:     opts.LockfilePath,
			Index:    opts.IndexPath,
		},
		config:    cfg,
		layers:    layers,
		cache:     c,
		platforms: target.NewPlatformMap(cfg.PlatformDefinitions),
		fetcher:   reg,
		logger:    logger,
	}, nil
}

// cacheDir picks the checkout cache: explicit option, then settings, then
// AGPM_CACHE_DIR, then the OS default.
func cacheDir(explicit string, cfg *config.Config) string {
	switch {
	case explicit != "":
		return explicit
	case cfg.CacheDir != "":
		return cfg.CacheDir
	case config.EnvCacheDir() != "":
		return config.EnvCacheDir()
	}
	return cache.DefaultDir()
}

// Workspace loads the workspace state files.
func (c *Client) Workspace() (*workspace.Workspace, error) {
	return workspace.Open(c.root, c.paths)
}

// Config returns the merged tool settings.
func (c *Client) Config() *config.Config {
	return c.config
}

// Platforms returns the platform table, built-ins plus custom definitions.
func (c *Client) Platforms() *target.PlatformMap {
	return c.platforms
}

// Install resolves the manifest (plus opts.Source) and installs every
// bundle's resources.
func (c *Client) Install(ctx context.Context, opts InstallOptions) (*InstallReport, error) {
	ws, err := c.Workspace()
	if err != nil {
		return nil, err
	}
	eng := &engine.InstallEngine{
		Fetcher:   c.fetcher,
		Platforms: c.platforms,
		Merger:    merge.New(),
		Config:    c.config,
		Logger:    c.logger,
	}
	return eng.Install(ctx, ws, opts)
}

// Uninstall removes a bundle, or every bundle in a scope, plus the
// dependencies nothing else needs.
func (c *Client) Uninstall(ctx context.Context, opts UninstallOptions) (*UninstallReport, error) {
	ws, err := c.Workspace()
	if err != nil {
		return nil, err
	}
	eng := &engine.UninstallEngine{Logger: c.logger}
	return eng.Uninstall(ctx, ws, opts)
}

// Prune removes bundles no manifest entry reaches any more.
func (c *Client) Prune(ctx context.Context, opts PruneOptions) (*UninstallReport, error) {
	ws, err := c.Workspace()
	if err != nil {
		return nil, err
	}
	eng := &engine.PruneEngine{Logger: c.logger}
	return eng.Prune(ctx, ws, opts)
}

// Check verifies that installed files match what agpm wrote.
func (c *Client) Check(ctx context.Context) (*CheckReport, error) {
	ws, err := c.Workspace()
	if err != nil {
		return nil, err
	}
	return (&engine.CheckEngine{}).Check(ctx, ws)
}

// List returns the state of all (or the named) locked bundles.
func (c *Client) List(ctx context.Context, names []string) ([]BundleStatus, error) {
	ws, err := c.Workspace()
	if err != nil {
		return nil, err
	}
	eng := &engine.StatusEngine{Platforms: c.platforms}
	return eng.Status(ctx, ws, names)
}

// Verify reports which locked bundles changed upstream.
func (c *Client) Verify(ctx context.Context, names []string) (*VerifyReport, error) {
	ws, err := c.Workspace()
	if err != nil {
		return nil, err
	}
	eng := &engine.VerifyEngine{Fetcher: c.fetcher, Logger: c.logger}
	return eng.Verify(ctx, ws, names)
}

// Info gathers tool and workspace information.
func (c *Client) Info(version string) (*InfoResult, error) {
	ws, err := c.Workspace()
	if err != nil {
		return nil, err
	}
	return engine.Info(version, ws, c.cache, c.platforms, c.layers)
}
