package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexflint/go-arg"
	"github.com/rs/zerolog"

	// Drivers for records_url.
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/ligustah/fetchq/internal/config"
	"github.com/ligustah/fetchq/internal/progress"
)

// Exit codes
const (
	ExitSuccess         = 0
	ExitGeneralError    = 1
	ExitInvalidArgs     = 2
	ExitSourceNotAccess = 3
	ExitStorageError    = 5
	ExitInterrupted     = 130
)

type getCmd struct {
	URLs       []string `arg:"positional" help:"URLs to download, in addition to the tasks in the config file"`
	Dir        string   `arg:"-d,--dir" help:"base download directory"`
	Parallel   int      `arg:"-p,--parallel" help:"maximum concurrent downloads"`
	ChunkSize  string   `arg:"--chunk-size" help:"range request size, e.g. 4MiB"`
	Override   bool     `arg:"--override" help:"re-download files that already exist"`
	Progress   bool     `arg:"--progress" help:"show progress bars on stderr"`
	RecordsURL string   `arg:"--records-url" help:"gocloud bucket URL for task records"`
}

type infoCmd struct {
	URL string `arg:"positional,required" help:"URL to probe"`
}

type statusCmd struct {
	Paths []string `arg:"positional,required" help:"target files or .task records"`
}

type cliArgs struct {
	Config    string     `arg:"-c,--config" help:"YAML configuration file"`
	LogLevel  string     `arg:"--log-level" help:"trace, debug, info, warn or error"`
	LogFormat string     `arg:"--log-format" help:"console or json"`
	Get       *getCmd    `arg:"subcommand:get" help:"download URLs with resume support"`
	Info      *infoCmd   `arg:"subcommand:info" help:"probe a URL without downloading"`
	Status    *statusCmd `arg:"subcommand:status" help:"show the stored state of a download"`
}

func (cliArgs) Description() string {
	return "fetchq downloads files over HTTP in resumable chunks."
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, argv []string, stdout, stderr io.Writer) int {
	var args cliArgs
	p, err := arg.NewParser(arg.Config{Program: "fetchq"}, &args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitGeneralError
	}

	err = p.Parse(argv)
	switch {
	case errors.Is(err, arg.ErrHelp):
		p.WriteHelpForSubcommand(stdout, p.SubcommandNames()...)
		return ExitSuccess
	case err != nil:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		p.WriteUsageForSubcommand(stderr, p.SubcommandNames()...)
		return ExitInvalidArgs
	case p.Subcommand() == nil:
		p.WriteHelp(stderr)
		return ExitInvalidArgs
	}

	cfg, err := loadConfig(args)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitInvalidArgs
	}
	logger := newLogger(cfg.Log, stderr)

	switch {
	case args.Get != nil:
		return runGet(ctx, args.Get, cfg, logger, stdout, stderr)
	case args.Info != nil:
		return runInfo(ctx, args.Info, cfg, stdout, stderr)
	default:
		return runStatus(ctx, args.Status, cfg, stdout, stderr)
	}
}

// loadConfig layers defaults, the config file, FETCHQ_ variables and flags.
func loadConfig(args cliArgs) (config.Config, error) {
	cfg := config.Default()
	if args.Config != "" {
		var err error
		if cfg, err = config.LoadFromFile(args.Config); err != nil {
			return config.Config{}, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return config.Config{}, err
	}

	override := config.Config{
		Log: config.LogConfig{Level: args.LogLevel, Format: args.LogFormat},
	}
	if g := args.Get; g != nil {
		override.DownloadDir = g.Dir
		override.MaxParallel = g.Parallel
		override.Override = g.Override
		override.Progress = g.Progress
		override.RecordsURL = g.RecordsURL
		if g.ChunkSize != "" {
			n, err := progress.ParseBytes(g.ChunkSize)
			if err != nil {
				return config.Config{}, fmt.Errorf("parse --chunk-size: %w", err)
			}
			override.ChunkSize = config.ByteSize(n)
		}
	}
	cfg = cfg.Merge(override)

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if cfg.Format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
