// Command router runs the polyroute request router. It terminates
// tenant HTTP traffic, resolves the project and stage from the
// request subdomain, matches the path against the project's route
// table, and forwards matched requests to the function runtime.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/polyroute/polyroute/internal/config"
	"github.com/polyroute/polyroute/internal/observability"
)

// Build metadata, injected at link time.
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// exitFunc is swapped in tests to observe fatal paths.
var exitFunc = os.Exit

type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func parseFlags() cliFlags {
	var flags cliFlags

	flag.StringVar(&flags.configPath, "config",
		getEnvOrDefault("POLYROUTE_CONFIG_PATH", "configs/router.yaml"),
		"path to the configuration file")
	flag.StringVar(&flags.logLevel, "log-level",
		getEnvOrDefault("POLYROUTE_LOG_LEVEL", ""),
		"log level override (debug, info, warn, error)")
	flag.StringVar(&flags.logFormat, "log-format",
		getEnvOrDefault("POLYROUTE_LOG_FORMAT", ""),
		"log format override (json, console)")
	flag.BoolVar(&flags.showVersion, "version", false,
		"print version information and exit")
	flag.Parse()

	return flags
}

func printVersion() {
	fmt.Printf("polyroute version %s\n", version)
	fmt.Printf("  build time: %s\n", buildTime)
	fmt.Printf("  git commit: %s\n", gitCommit)
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		printVersion()
		return
	}

	// Bootstrap logger so configuration failures surface in a
	// structured form. Rebuilt once the configuration is known.
	logger := initLogger(observability.LogConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	})

	cfg := loadAndValidateConfig(flags.configPath, logger)

	logCfg := observability.LogConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cfg.LogOutput,
	}
	if flags.logLevel != "" {
		logCfg.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		logCfg.Format = flags.logFormat
	}
	logger = initLogger(logCfg)

	logger.Info("starting polyroute",
		observability.String("version", version),
		observability.String("commit", gitCommit))

	app := initApplication(cfg, logger)

	runRouter(app, logger)
}

func initLogger(cfg observability.LogConfig) observability.Logger {
	logger, err := observability.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		exitFunc(1)
		return observability.NopLogger()
	}
	observability.SetGlobalLogger(logger)
	return logger
}

// loadAndValidateConfig reads the configuration file when one can be
// found and falls back to defaults otherwise, so the router starts
// from environment variables alone.
func loadAndValidateConfig(path string, logger observability.Logger) *config.Config {
	cfg := config.DefaultConfig()

	resolved, err := config.ResolveConfigPath(path)
	if err == nil {
		cfg, err = config.LoadConfig(resolved)
		if err != nil {
			fatalWithSync(logger, "failed to load configuration",
				observability.String("path", resolved),
				observability.Error(err))
			return nil // unreachable in production; allows tests to continue
		}
		logger.Info("configuration loaded",
			observability.String("path", resolved))
	} else {
		logger.Info("no configuration file found, using defaults",
			observability.String("path", path))
	}

	if err := cfg.Validate(); err != nil {
		fatalWithSync(logger, "invalid configuration",
			observability.Error(err))
		return nil // unreachable in production; allows tests to continue
	}

	return cfg
}

// fatalWithSync flushes buffered log output before exiting so the
// failure reason reaches the sink.
func fatalWithSync(logger observability.Logger, msg string, fields ...observability.Field) {
	logger.Error(msg, fields...)
	_ = logger.Sync()
	exitFunc(1)
}
