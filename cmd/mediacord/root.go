package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	rootpkg "tools.zach/dev/mediacord"
	"tools.zach/dev/mediacord/internal/agent"
	"tools.zach/dev/mediacord/internal/atomicfile"
	"tools.zach/dev/mediacord/internal/config"
	"tools.zach/dev/mediacord/internal/logger"
	"tools.zach/dev/mediacord/internal/paths"
	"tools.zach/dev/mediacord/internal/remote"
)

// cli holds the persistent flags shared by every command.
type cli struct {
	dataDir    string
	jsonOutput bool
	verbose    bool

	// newAgent is swapped in tests.
	newAgent func(store *config.Store) *agent.Agent
}

func newRootCmd() *cobra.Command {
	return (&cli{}).rootCmd()
}

func (c *cli) rootCmd() *cobra.Command {
	if c.newAgent == nil {
		c.newAgent = c.defaultAgent
	}

	root := &cobra.Command{
		Use:   paths.BinaryName,
		Short: "Mirror Emby and Jellyfin playback into Discord Rich Presence",
		Long: `mediacord shows what you are watching or listening to on an Emby or
Jellyfin server as your Discord status.

Add a server with 'mediacord server add', then start the daemon with
'mediacord run'. Settings changed by other commands are picked up by a
running daemon automatically.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelWarn
			if c.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(logger.NewHandler(cmd.ErrOrStderr(), level)))
		},
	}
	root.PersistentFlags().StringVar(&c.dataDir, "data-dir", defaultDataDir(), "Data directory for config, PID file and logs")
	root.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "Output as JSON")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Log debug output to stderr")

	root.Version = resolveVersion()
	root.SetVersionTemplate(paths.BinaryName + " {{.Version}}\n")

	root.AddCommand(
		c.runCmd(),
		c.serverCmd(),
		c.libraryCmd(),
		c.displayCmd(),
		c.discoverCmd(),
		c.resetCmd(),
		c.logsCmd(),
		c.versionCmd(),
	)
	return root
}

// ///////////////////////////////////////////////
// Shared Helpers
// ///////////////////////////////////////////////

func (c *cli) paths() DataPaths {
	return DataPaths{Root: c.dataDir}
}

// store prepares the data directory, seeding the default config on first
// use, and returns a config store for it.
func (c *cli) store() (*config.Store, error) {
	dp := c.paths()
	if err := os.MkdirAll(dp.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := seedConfig(dp); err != nil {
		slog.Warn("failed to write default config", "error", err)
	}
	return config.NewStore(dp.Root), nil
}

// seedConfig writes the embedded default config if none exists. The file
// will hold passwords, so it is owner-only.
func seedConfig(dp DataPaths) error {
	if _, err := os.Stat(dp.Config()); !os.IsNotExist(err) {
		return nil
	}
	return atomicfile.Write(dp.Config(), rootpkg.DefaultConfigTOML, 0o600)
}

func (c *cli) defaultAgent(store *config.Store) *agent.Agent {
	return agent.New(agent.Options{
		Store:   store,
		Version: resolveVersion(),
		IconURL: func(serverType string) string {
			return remote.RawURL(paths.DiscordAsset(serverType, "large"))
		},
		Logger:  slog.Default(),
	})
}

// agent returns an Agent for management commands. It is never started, so
// its operations only validate, probe and persist; a running daemon picks
// the changes up from the config file.
func (c *cli) agent() (*agent.Agent, *config.Store, error) {
	store, err := c.store()
	if err != nil {
		return nil, nil, err
	}
	return c.newAgent(store), store, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
