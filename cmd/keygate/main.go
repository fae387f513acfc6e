// Package main is the entry point for keygate.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/vyrodovalexey/keygate/internal/config"
	"github.com/vyrodovalexey/keygate/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags := parseFlags(os.Args[1:])

	if flags.showVersion {
		printVersion()
		return
	}

	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	applyFlagOverrides(cfg, flags)

	logger := initLogger(cfg)
	defer func() { _ = logger.Sync() }()

	if err := config.ValidateConfig(cfg); err != nil {
		fatalWithSync(logger, "invalid configuration", observability.Error(err))
		return
	}

	logger.Info("starting keygate",
		observability.String("version", version),
		observability.String("config", flags.configPath),
		observability.String("store", cfg.Authority.Store.Type),
		observability.Bool("force_api_key", cfg.Auth.ForceAPIKey),
		observability.Int("static_keys", len(cfg.Authority.Store.Keys)),
		observability.Int("policies", len(cfg.Authz.Policies)),
	)

	app, err := initApplication(cfg, logger)
	if err != nil {
		fatalWithSync(logger, "failed to initialize application", observability.Error(err))
		return
	}

	run(app, flags.configPath, logger)
}

// parseFlags parses command line flags.
func parseFlags(args []string) cliFlags {
	fs := flag.NewFlagSet("keygate", flag.ExitOnError)
	configPath := fs.String("config", getEnvOrDefault("KEYGATE_CONFIG_PATH", "configs/keygate.yaml"),
		"Path to configuration file")
	logLevel := fs.String("log-level", getEnvOrDefault("KEYGATE_LOG_LEVEL", ""),
		"Log level override (debug, info, warn, error)")
	logFormat := fs.String("log-format", getEnvOrDefault("KEYGATE_LOG_FORMAT", ""),
		"Log format override (json, console)")
	showVersion := fs.Bool("version", false, "Show version information")
	_ = fs.Parse(args)

	return cliFlags{
		configPath:  *configPath,
		logLevel:    *logLevel,
		logFormat:   *logFormat,
		showVersion: *showVersion,
	}
}

// applyFlagOverrides lets flags and their env fallbacks win over the file.
func applyFlagOverrides(cfg *config.Config, flags cliFlags) {
	if flags.logLevel != "" {
		cfg.Observability.Logging.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Observability.Logging.Format = flags.logFormat
	}
}

// printVersion prints version information.
func printVersion() {
	fmt.Printf("keygate version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger.
func initLogger(cfg *config.Config) observability.Logger {
	logger, err := observability.NewLogger(logConfig(&cfg.Observability.Logging))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	return logger
}

// logConfig converts the logging section to the logger configuration.
func logConfig(l *config.LoggingConfig) observability.LogConfig {
	lc := observability.LogConfig{
		Level:  l.Level,
		Format: l.Format,
		Output: l.Output,
	}
	if l.File != nil {
		lc.File = &observability.LogFileConfig{
			Path:       l.File.Path,
			MaxSizeMB:  l.File.MaxSizeMB,
			MaxBackups: l.File.MaxBackups,
			MaxAgeDays: l.File.MaxAgeDays,
			Compress:   l.File.Compress,
		}
	}
	return lc
}

// exitFunc is os.Exit, replaced in tests.
var exitFunc = os.Exit

// fatalWithSync logs at error level, flushes the logger and exits.
func fatalWithSync(logger observability.Logger, msg string, fields ...observability.Field) {
	logger.Error(msg, fields...)
	_ = logger.Sync()
	exitFunc(1)
}
