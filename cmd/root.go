package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/issuetracker/internal/output"
	"github.com/joescharf/issuetracker/internal/store"
	"github.com/joescharf/issuetracker/internal/tracker"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "issues",
	Short: "Issue tracker - per-project issue records over REST",
	Long: `issues stores issue records grouped by project and serves them
over a small REST API at /api/issues/{project}.

The same operations are available from the command line and as MCP tools.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	err := rootCmd.Execute()
	if dataStore != nil {
		_ = dataStore.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/issues/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		configDir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("ISSUES")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	// DB is the connection string variable older deployments already set.
	_ = viper.BindEnv("mongodb.uri", "ISSUES_MONGODB_URI", "DB")

	setDefaults()

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key's default value.
func setDefaults() {
	defaultConfigDir, _ := configDirFunc()
	stateDir := viper.GetString("state_dir")
	if stateDir == "" {
		stateDir = defaultConfigDir
	}

	viper.SetDefault("state_dir", defaultConfigDir)
	viper.SetDefault("db_path", filepath.Join(stateDir, "issues.db"))
	viper.SetDefault("store.driver", store.DriverSQLite)
	viper.SetDefault("mongodb.uri", "")
	viper.SetDefault("mongodb.database", "issuetracker")
	viper.SetDefault("mongodb.timeout", "5s")
	viper.SetDefault("port", 8080)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	slog.SetDefault(newLogger(os.Stderr))

	// Initialize store lazily — only when commands actually need it.
	// This allows config/version commands to run without a db.
}

// newLogger builds the process logger from log.level and log.format.
func newLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log.level"))); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(viper.GetString("log.format"), "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// storeConfig collects the store settings from viper.
func storeConfig() store.Config {
	return store.Config{
		Driver:        viper.GetString("store.driver"),
		DBPath:        viper.GetString("db_path"),
		MongoURI:      viper.GetString("mongodb.uri"),
		MongoDatabase: viper.GetString("mongodb.database"),
		MongoTimeout:  viper.GetDuration("mongodb.timeout"),
	}
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	ctx := rootCmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := storeConfig()
	ui.VerboseLog("Opening %s store", cfg.Driver)
	s, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// getTracker returns a tracker over the shared store.
func getTracker() (*tracker.Tracker, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	return tracker.New(s), nil
}
