// Command trboctl is a CLI for reading, writing, and validating a MOTOTRBO
// subscriber radio's codeplug over its programming (XNL/XCMP) interface.
// A flag-parsed entrypoint builds a config.Load/logger.New bootstrap and
// wires background metrics/audit-log servers off the same Config struct,
// one operation per invocation rather than a long-running server process.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/n5dmr/trbo-xnl/pkg/auditlog"
	"github.com/n5dmr/trbo-xnl/pkg/config"
	"github.com/n5dmr/trbo-xnl/pkg/logger"
	"github.com/n5dmr/trbo-xnl/pkg/metrics"
	"github.com/n5dmr/trbo-xnl/pkg/progresshub"
)

var (
	version   = "dev"
	gitCommit = "unknown"
	buildTime = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	sub := args[0]
	rest := args[1:]

	if sub == "-version" || sub == "--version" || sub == "version" {
		fmt.Printf("trboctl %s\n", version)
		fmt.Printf("Git Commit: %s\n", gitCommit)
		fmt.Printf("Built: %s\n", buildTime)
		return 0
	}

	switch sub {
	case "identify", "read", "write", "validate", "compare":
	default:
		fmt.Fprintf(os.Stderr, "trboctl: unknown subcommand %q\n", sub)
		printUsage()
		return 2
	}

	fs := flag.NewFlagSet(sub, flag.ExitOnError)
	configFile := fs.String("config", "", "path to configuration file")
	host := fs.String("host", "", "radio host (overrides config)")
	port := fs.Int("port", 0, "radio port (overrides config)")
	keyFile := fs.String("key-file", "", "path to the 16-byte TEA key, as 32 hex characters (overrides config)")
	inFile := fs.String("in", "", "input codeplug JSON file")
	outFile := fs.String("out", "", "output codeplug JSON file")
	zones := fs.Int("zones", 1, "number of zones to read (read only)")
	channels := fs.Int("channels-per-zone", 16, "channels per zone to read (read only)")
	contacts := fs.Int("contacts", 0, "number of contact records to read (read only)")
	verify := fs.Bool("verify", true, "read back and compare after write")
	noMetrics := fs.Bool("no-metrics", false, "disable the Prometheus metrics endpoint for this invocation")
	noProgressHub := fs.Bool("no-progress-hub", false, "disable the WebSocket progress fan-out for this invocation")
	if err := fs.Parse(rest); err != nil {
		return 2
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "trboctl: load config: %v\n", err)
		return 1
	}
	if *host != "" {
		cfg.Radio.Host = *host
	}
	if *port != 0 {
		cfg.Radio.Port = *port
	}
	if *keyFile != "" {
		cfg.Radio.KeyFile = *keyFile
	}
	if *noMetrics {
		cfg.Metrics.Enabled = false
	}
	if *noProgressHub {
		cfg.ProgressHub.Enabled = false
	}

	log := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("received shutdown signal, cancelling in-flight operation")
		cancel()
	}()

	collector := metrics.NewCollector()
	if cfg.Metrics.Enabled {
		go func() {
			server := metrics.NewPrometheusServer(metrics.PrometheusConfig{
				Enabled: cfg.Metrics.Enabled,
				Port:    cfg.Metrics.Port,
				Path:    cfg.Metrics.Path,
			}, collector, log)
			if err := server.Start(ctx); err != nil && err != context.Canceled {
				log.Error("metrics server error", logger.Error(err))
			}
		}()
	}

	var hub *progresshub.Hub
	if cfg.ProgressHub.Enabled {
		hub = progresshub.New(log)
		go hub.Run(ctx)
		go func() {
			srv := &httpServer{addr: fmt.Sprintf(":%d", cfg.ProgressHub.Port), handler: hub.Handler()}
			if err := srv.serve(ctx); err != nil {
				log.Error("progress hub server error", logger.Error(err))
			}
		}()
	}

	var audit *auditlog.Log
	if cfg.AuditLog.Enabled {
		audit, err = auditlog.Open(auditlog.Config{Path: cfg.AuditLog.Path}, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "trboctl: open audit log: %v\n", err)
			return 1
		}
		defer func() { _ = audit.Close() }()
	}

	env := &commandEnv{
		ctx:       ctx,
		cfg:       cfg,
		log:       log,
		collector: collector,
		hub:       hub,
		audit:     audit,
		inFile:    *inFile,
		outFile:   *outFile,
		zones:     *zones,
		channels:  *channels,
		contacts:  *contacts,
		verify:    *verify,
		args:      fs.Args(),
	}

	var runErr error
	switch sub {
	case "identify":
		runErr = cmdIdentify(env)
	case "read":
		runErr = cmdRead(env)
	case "write":
		runErr = cmdWrite(env)
	case "validate":
		runErr = cmdValidate(env)
	case "compare":
		runErr = cmdCompare(env)
	default:
		fmt.Fprintf(os.Stderr, "trboctl: unknown subcommand %q\n", sub)
		printUsage()
		return 2
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "trboctl: %s: %v\n", sub, runErr)
		return 1
	}
	return 0
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: trboctl <command> [flags]

commands:
  identify   connect to a radio and print its device identity
  read       clone-read a codeplug from a radio to a JSON file
  write      validate and clone-write a JSON codeplug to a radio
  validate   run codeplug sanity checks against a JSON file
  compare    diff two JSON codeplugs field by field
  version    print version information

run "trboctl <command> -h" for command-specific flags`)
}
