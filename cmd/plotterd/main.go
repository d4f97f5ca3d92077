// plotterd serves the bent-crank plotter kinematics over JSON-RPC, REST and
// websocket, and optionally streams solved paths to the servo controller.
//
// Usage:
//
//	plotterd -config ~/plotter.cfg [options]
//
// Options:
//
//	-config string        Plotter configuration file (required)
//	-api string           API listen address (overrides [api] address)
//	-metrics-addr string  Serve Prometheus metrics on a separate address
//	-logfile string       Log file path (default: stderr)
//	-log-level string     DEBUG, INFO, WARN or ERROR
//	-workers int          Batch worker pool size (default: GOMAXPROCS)
//	-watch                Reload the config file when it changes (default true)
//	-list-ports           Print candidate servo controller ports and exit
//
// Examples:
//
//	# Start with the address from the config file
//	plotterd -config ~/plotter.cfg
//
//	# Debug logging to a rotating file, metrics on their own port
//	plotterd -config ~/plotter.cfg -logfile /var/log/plotterd.log -log-level debug -metrics-addr :9150
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bentcrank-plotter/pkg/api"
	"bentcrank-plotter/pkg/config"
	"bentcrank-plotter/pkg/errors"
	"bentcrank-plotter/pkg/kinematics"
	"bentcrank-plotter/pkg/log"
	"bentcrank-plotter/pkg/metrics"
	"bentcrank-plotter/pkg/servolink"
)

func main() {
	configFile := flag.String("config", "", "Plotter configuration file (required)")
	apiAddr := flag.String("api", "", "API listen address (overrides [api] address)")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on a separate address")
	logFile := flag.String("logfile", "", "Log file path (default: stderr)")
	logLevel := flag.String("log-level", "", "Log level: DEBUG, INFO, WARN, ERROR")
	workers := flag.Int("workers", 0, "Batch worker pool size (default: GOMAXPROCS)")
	watch := flag.Bool("watch", true, "Reload the config file when it changes")
	listPorts := flag.Bool("list-ports", false, "Print candidate servo controller ports and exit")
	flag.Parse()

	if *listPorts {
		ports := servolink.ListPorts()
		if len(ports) == 0 {
			fmt.Println("No serial ports found")
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	if *configFile == "" {
		fmt.Fprintf(os.Stderr, "Error: -config is required\n")
		flag.Usage()
		os.Exit(1)
	}

	logger := log.GetLogger("plotterd")
	if *logFile != "" {
		fl, fw, err := log.NewFileLogger("plotterd", log.RotationConfig{Filename: *logFile}, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer fw.Close()
		log.ConfigureFromEnv(fl)
		log.SetDefaultLogger(fl)
		logger = fl
	}
	if *logLevel != "" {
		logger.SetLevel(log.ParseLevel(*logLevel))
	}

	if err := run(logger, options{
		configFile:  *configFile,
		apiAddr:     *apiAddr,
		metricsAddr: *metricsAddr,
		workers:     *workers,
		watch:       *watch,
	}); err != nil {
		logger.WithError(err).Error("plotterd stopped")
		if *logFile != "" {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

type options struct {
	configFile  string
	apiAddr     string
	metricsAddr string
	workers     int
	watch       bool
}

func run(logger *log.Logger, opts options) error {
	raw, err := config.Load(opts.configFile)
	if err != nil {
		return err
	}
	pc, err := config.FromConfig(raw)
	if err != nil {
		if ce, ok := err.(*config.ConfigError); ok && ce.File == "" {
			ce.File = opts.configFile
		}
		return err
	}
	for _, w := range pc.Warnings {
		logger.WithField("file", opts.configFile).Warn(w)
	}

	k, err := kinematics.NewFromConfig(pc.Mode, pc.Kinematics)
	if err != nil {
		return err
	}
	solver, ok := k.(*kinematics.Solver)
	if !ok {
		return errors.New(errors.ErrKinematicsUnsupported, "kinematics "+pc.Mode+" has no solver")
	}
	solver.SetLogger(logger.WithPrefix("kinematics"))

	d := solver.Derived()
	logger.WithFields(log.Fields{
		"kinematics":      solver.GetType(),
		"effective_crank": fmt.Sprintf("%.3f", d.EffectiveCrankLength),
		"phase_offset":    fmt.Sprintf("%.3f", d.PhaseOffsetDegrees()),
		"main_arm":        pc.Kinematics.MainArmLength,
	}).Info("geometry loaded")

	pm := metrics.NewPlotterMetrics()
	pm.Instrument(solver)

	var link *servolink.Link
	if pc.Link.Enabled() {
		link, err = servolink.OpenLink(pc.Link)
		if err != nil {
			return err
		}
		defer link.Close()
		logger.WithFields(log.Fields{"device": pc.Link.Device, "baud": pc.Link.Baud}).Info("servo link open")
	}

	addr := pc.APIAddr
	if opts.apiAddr != "" {
		addr = opts.apiAddr
	}
	server := api.New(api.Config{
		Addr:       addr,
		Solver:     solver,
		Metrics:    pm,
		Link:       link,
		ConfigFile: opts.configFile,
		Workers:    opts.workers,
		SaveConfig: func(cfg kinematics.Config) error {
			return config.SaveKinematics(opts.configFile, cfg)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() { errCh <- server.Start() }()

	var ms *metrics.MetricsServer
	if opts.metricsAddr != "" {
		ms = metrics.NewMetricsServer(pm, opts.metricsAddr)
		go func() { errCh <- ms.Start() }()
	}

	if opts.watch {
		w := config.NewWatcher(opts.configFile, raw, func(next config.PlotterConfig, changed []string) error {
			if err := solver.SetConfig(next.Kinematics); err != nil {
				return err
			}
			pm.RecordReload(nil)
			if restartNeeded(changed) {
				logger.WithField("sections", strings.Join(changed, ",")).
					Warn("api and servo link settings apply after restart")
			}
			return nil
		})
		w.OnError(pm.RecordReload)
		go func() {
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				logger.WithError(err).Warn("config watcher stopped, reloads disabled")
			}
		}()
	}

	logger.WithField("address", addr).Info("plotterd ready")

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if ms != nil {
		_ = ms.Shutdown(shutdownCtx)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, errors.ErrRuntime, "api shutdown")
	}
	logger.Info("plotterd stopped")
	return nil
}

// restartNeeded reports whether any changed section is only read at
// startup.
func restartNeeded(changed []string) bool {
	for _, name := range changed {
		if name == "api" || name == "servo_link" {
			return true
		}
	}
	return false
}
