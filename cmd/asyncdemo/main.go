// Command asyncdemo runs small scenarios against the async registry and prints
// what the handlers observed.
package main

import (
	"fmt"
	"os"
	"time"

	async "github.com/Swind/go-async"
	"github.com/Swind/go-async/core"
	asyncprom "github.com/Swind/go-async/observability/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "asyncdemo",
		Usage: "Exercise timers, listeners, promises and workers through the async registry",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "zerolog level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Write logs as JSON instead of console output",
			},
		},
		Commands: []*cli.Command{
			muteCommand(),
			suspendCommand(),
			onceCommand(),
			workerCommand(),
			serveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger builds the core.Logger selected by the global flags.
func newLogger(c *cli.Context) (core.Logger, error) {
	level, err := zerolog.ParseLevel(c.String("log-level"))
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("invalid log level: %v", err), 1)
	}

	var z zerolog.Logger
	if c.Bool("json") {
		z = zerolog.New(os.Stderr)
	} else {
		z = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	return core.NewZerologLogger(z.Level(level).With().Timestamp().Logger()), nil
}

// newAsync builds an Async logging through c's logger and, if reg is not
// nil, exporting metrics to it.
func newAsync(c *cli.Context, name string, reg prom.Registerer) (*async.Async, error) {
	logger, err := newLogger(c)
	if err != nil {
		return nil, err
	}

	cfg := async.DefaultConfig()
	cfg.Name = name
	cfg.Logger = logger
	cfg.ErrorSink = func(herr *async.HandlerError) {
		logger.Error("handler failed", core.F("error", herr))
	}
	if reg != nil {
		exporter, err := asyncprom.NewMetricsExporter("async", reg, asyncprom.ExporterOptions{})
		if err != nil {
			return nil, cli.Exit(fmt.Sprintf("metrics: %v", err), 1)
		}
		cfg.Metrics = exporter
	}
	return async.NewWithConfig(cfg), nil
}
