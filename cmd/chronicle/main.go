package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/pders01/chronicle/internal/config"
	"github.com/pders01/chronicle/internal/debuglog"
	"github.com/pders01/chronicle/internal/search"
	"github.com/pders01/chronicle/internal/tui"
	"github.com/pders01/chronicle/internal/validation"
)

// Version is the version of the application, set at build time
var Version = "dev"

var (
	cfgFile  string
	dbPath   string
	apiURL   string
	logLevel string
	quiet    bool
	noColor  bool
	cfg      *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "chronicle",
	Short: "Terminal client for the Grand Chronicler",
	Long: `chronicle reads, writes and manages historical articles on a Grand
Chronicler service. Without a subcommand it starts the interactive reader.

Example usage:
  chronicle                         # start the TUI
  chronicle login --email me@x.org  # store a session
  chronicle articles list           # list the newest articles
  chronicle mock-server             # serve a local fake API on :3000`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = debuglog.Close()
	},
	RunE: runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/chronicle/config.toml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to database file (overrides config)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "", "API base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: off, error, warn, info, debug")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "skip startup banner")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// initConfig loads configuration, applies flag overrides and starts logging.
func initConfig() error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if dbPath != "" {
		loaded.Database.Path = dbPath
	}
	if apiURL != "" {
		loaded.API.BaseURL = apiURL
	}
	if logLevel != "" {
		loaded.Log.Level = logLevel
	}

	normalized, err := validation.NewPermissiveAPIURLValidator().ValidateAndNormalize(loaded.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url: %w", err)
	}
	loaded.API.BaseURL = normalized

	for _, p := range []*string{&loaded.Database.Path, &loaded.Database.SearchIndex} {
		prepared, err := validation.PrepareDataPath(*p)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		*p = prepared
	}

	if err := debuglog.Setup(debuglog.ParseLogLevel(loaded.Log.Level), loaded.Log.File); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
	debuglog.Infof("chronicle %s starting against %s", Version, loaded.API.BaseURL)

	cfg = loaded
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	if !quiet {
		tui.ShowBanner(Version)
	}

	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	index, err := search.OpenIndex(env.store, cfg.Database.SearchIndex)
	if err != nil {
		debuglog.Warnf("offline search disabled: %v", err)
		index = nil
	}
	if index != nil {
		defer index.Close()
	}

	app := tui.NewApp(env.store, env.client, index, cfg)
	defer app.Close()

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "chronicle %s\n", Version)
		fmt.Fprintln(out, "Historical articles in the terminal")
		fmt.Fprintln(out, "github.com/pders01/chronicle")
	},
}

var configGenCmd = &cobra.Command{
	Use:   "generate-config",
	Short: "Write the default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("resolving home directory: %w", err)
			}
			path = filepath.Join(home, ".config", "chronicle", "config.toml")
		}
		if err := config.GenerateDefaultConfig(path); err != nil {
			return fmt.Errorf("generating config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Generated default configuration at: %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configGenCmd)
}
