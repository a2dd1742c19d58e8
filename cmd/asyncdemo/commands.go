package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	async "github.com/Swind/go-async"
	"github.com/Swind/go-async/core"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

var unitFlag = &cli.DurationFlag{
	Name:  "unit",
	Value: 5 * time.Millisecond,
	Usage: "Base interval of the scenario",
}

func muteCommand() *cli.Command {
	return &cli.Command{
		Name:   "mute",
		Usage:  "Mute an interval group while an ungrouped timeout fires",
		Flags:  []cli.Flag{unitFlag},
		Action: muteAction,
	}
}

func muteAction(c *cli.Context) error {
	a, err := newAsync(c, "mute", nil)
	if err != nil {
		return err
	}
	defer a.Close()

	res := muteScenario(a, c.Duration("unit"))
	fmt.Printf("after mute:   %d\n", res.AfterMute)
	fmt.Printf("after unmute: %d\n", res.AfterUnmute)
	return nil
}

func suspendCommand() *cli.Command {
	return &cli.Command{
		Name:   "suspend",
		Usage:  "Suspend groups matching /foo/ across namespaces and emit an event",
		Flags:  []cli.Flag{unitFlag},
		Action: suspendAction,
	}
}

func suspendAction(c *cli.Context) error {
	a, err := newAsync(c, "suspend", nil)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Printf("handlers run: %d\n", suspendScenario(a, c.Duration("unit")))
	return nil
}

func onceCommand() *cli.Command {
	return &cli.Command{
		Name:   "once",
		Usage:  "Attach one Once listener to two events and emit both",
		Action: onceAction,
	}
}

func onceAction(c *cli.Context) error {
	a, err := newAsync(c, "once", nil)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := onceScenario(a)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	fmt.Printf("fired: %v, listeners left: %d\n", res.Fired, res.Remaining)
	return nil
}

func workerCommand() *cli.Command {
	return &cli.Command{
		Name:   "worker",
		Usage:  "Link one worker twice and terminate both links",
		Action: workerAction,
	}
}

func workerAction(c *cli.Context) error {
	a, err := newAsync(c, "worker", nil)
	if err != nil {
		return err
	}
	defer a.Close()

	calls, err := workerScenario(a)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}
	fmt.Printf("destructor calls after first terminate: %d, after second: %d\n", calls[0], calls[1])
	return nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run a ticking interval and expose registry metrics over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Value: ":9090",
				Usage: "Listen address of the metrics endpoint",
			},
			&cli.DurationFlag{
				Name:  "tick",
				Value: time.Second,
				Usage: "Interval of the demo ticker",
			},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	reg := prom.NewRegistry()
	a, err := newAsync(c, "serve", reg)
	if err != nil {
		return err
	}
	defer a.Close()

	logger, _ := newLogger(c)
	ticks := 0
	a.SetInterval(func() {
		ticks++
		logger.Debug("tick", core.F("n", ticks))
		if ticks%5 == 0 {
			a.SetTimeout(func() {}, time.Minute, async.Options{Group: "burst", Label: "last"})
		}
	}, c.Duration("tick"), async.Options{Group: "demo"})

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: c.String("addr"), Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info("serving metrics", core.F("addr", srv.Addr))

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
