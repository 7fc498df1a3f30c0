// Package cmd implements the fuelcheck CLI commands.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/theirongolddev/fuelcheck/internal/cli"
	"github.com/theirongolddev/fuelcheck/internal/config"
	"github.com/theirongolddev/fuelcheck/internal/logging"

	"github.com/spf13/cobra"
)

var (
	flagConfig     string
	flagLogLevel   string
	flagJSONOutput bool
	flagNoColor    bool
	flagVerbose    bool
	flagQuiet      bool
)

var rootCmd = &cobra.Command{
	Use:   "fuelcheck",
	Short: "AI provider usage and cost checker",
	Long: "Check remaining quota and spend across AI coding providers, and build\n" +
		"cost reports from local Codex and Claude session logs.",
	RunE:          runUsage,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	err := rootCmd.Execute()
	code := exitCode(err)
	if err != nil && !isSilent(err) {
		fmt.Fprintf(os.Stderr, "fuelcheck: %v\n", err)
	}
	if code != 0 {
		os.Exit(code)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Config file path (default "+config.DefaultPath()+")")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	pf.BoolVar(&flagJSONOutput, "json-output", false, "Write log lines as JSON")
	pf.BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Debug logging")
	pf.BoolVarP(&flagQuiet, "quiet", "q", false, "Only log errors and suppress progress output")

	addUsageFlags(rootCmd)
}

// env is what every command needs after flag parsing.
type env struct {
	cfg    config.Config
	logger *slog.Logger
}

// setup loads the config and builds the logger. A malformed config is fatal
// for the invocation.
func setup() (env, error) {
	logger, err := newLogger()
	if err != nil {
		return env{}, usageError(err)
	}
	cli.ConfigureColor(os.Stdout, !flagNoColor)

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return env{}, err
	}
	logger.Debug("config loaded", "event", "config_loaded",
		"path", configPath(), "exists", config.Exists(flagConfig), "providers", len(cfg.Providers))
	return env{cfg: cfg, logger: logger}, nil
}

func newLogger() (*slog.Logger, error) {
	level := slog.LevelInfo
	switch {
	case flagQuiet:
		level = slog.LevelError
	case flagVerbose:
		level = slog.LevelDebug
	}
	if flagLogLevel != "" {
		l, err := logging.ParseLevel(flagLogLevel)
		if err != nil {
			return nil, err
		}
		level = l
	}
	return logging.New(os.Stderr, logging.Options{Level: level, JSON: flagJSONOutput}), nil
}

func configPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	return config.DefaultPath()
}
