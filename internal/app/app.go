package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	flags "github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"proxyscout/internal/app/version"
	"proxyscout/internal/config"
	"proxyscout/internal/support"
)

var errHelpShown = errors.New("app: help shown")

type options struct {
	Settings string `short:"s" long:"settings" description:"path to the settings file"`
	Once     bool   `long:"once" description:"run a single cycle and exit"`
	LogLevel string `long:"log-level" description:"log level (debug, info, warn, error)"`
	Version  bool   `short:"V" long:"version" description:"print the version and exit"`
}

func parseOptions(args []string) (options, error) {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		var e *flags.Error
		if errors.As(err, &e) && e.Type == flags.ErrHelp {
			return opts, errHelpShown
		}
		return opts, err
	}

	if opts.Settings == "" {
		opts.Settings = support.GetEnv("PROXYSCOUT_SETTINGS", config.DefaultSettingsPath)
	}
	if opts.LogLevel == "" {
		opts.LogLevel = os.Getenv("LOG_LEVEL")
	}
	return opts, nil
}

// applyEnvOverrides lets the environment replace deployment specific
// settings without editing the settings file.
func applyEnvOverrides(cfg *config.Config, opts options) {
	cfg.Output.RedisURL = support.GetEnv("REDIS_URL", cfg.Output.RedisURL)
	cfg.Output.DatabaseDSN = support.GetEnv("DATABASE_DSN", cfg.Output.DatabaseDSN)
	cfg.Output.DatabaseDriver = support.GetEnv("DATABASE_DRIVER", cfg.Output.DatabaseDriver)
	cfg.Output.Directory = support.GetEnv("OUTPUT_DIR", cfg.Output.Directory)
	cfg.Metrics.Address = support.GetEnv("METRICS_ADDR", cfg.Metrics.Address)

	if threads := support.GetEnvInt("CHECKER_THREADS", 0); threads > 0 {
		cfg.Checker.Threads = uint32(threads)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}
}

func Run() error {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found. Falling back to system environment variables.")
	}

	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		if errors.Is(err, errHelpShown) {
			return nil
		}
		return err
	}

	if opts.Version {
		fmt.Println(version.Get())
		return nil
	}

	cfg, err := config.Load(opts.Settings)
	if err != nil {
		return err
	}
	applyEnvOverrides(&cfg, opts)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logCloser, err := support.SetupLogger(support.LogSettings{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		MaxSizeKB: cfg.Logging.MaxSizeKB,
		MaxRolls:  cfg.Logging.MaxRolls,
	})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Starting proxyscout", "version", version.Get().BuildVersion, "sources", len(cfg.Sources))

	p, err := newPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	if opts.Once {
		_, err := p.runner.RunCycle(ctx)
		return err
	}

	if err := p.scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("Shutting down")
	return nil
}
