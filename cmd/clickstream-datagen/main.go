// Package main provides the CLI entry point for the clickstream data
// generator.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/example/clickstream/datagen/internal/broker"
	"github.com/example/clickstream/datagen/internal/config"
	"github.com/example/clickstream/datagen/internal/model"
	"github.com/example/clickstream/datagen/internal/server"
	"github.com/example/clickstream/datagen/internal/stream"
)

// Version information (populated at build time)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// CLI flags
var (
	configPath  string
	listenAddr  string
	seed        int64
	rateFlag    float64
	durFlag     time.Duration
	sampleKind  string
	streamKind  string
	validate    bool
	verbose     bool
	showVersion bool
)

func init() {
	flag.StringVar(&configPath, "config", "", "Path to the YAML configuration file")
	flag.StringVar(&configPath, "c", "", "Path to the YAML configuration file (shorthand)")

	// Override flags
	flag.StringVar(&listenAddr, "addr", "", "Override HTTP listen address (e.g., :8000)")
	flag.Int64Var(&seed, "seed", 0, "Override random seed (fixed seed gives reproducible output)")
	flag.Float64Var(&rateFlag, "rate", 0, "Override default stream rate (events/second)")
	flag.DurationVar(&durFlag, "duration", 0, "Override default stream duration (e.g., 30s)")

	// Utility flags
	flag.StringVar(&sampleKind, "sample", "", "Print one sample entity of the given kind and exit (users, products, interactions, sessions)")
	flag.StringVar(&streamKind, "stream", "", "Stream NDJSON of the given kind to stdout and exit")
	flag.BoolVar(&validate, "validate", false, "Validate configuration and exit")
	flag.BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	flag.BoolVar(&verbose, "v", false, "Enable verbose logging (shorthand)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = printUsage
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Clickstream Data Generator - synthetic e-commerce event streams

USAGE:
    clickstream-datagen [options]
    clickstream-datagen -stream interactions -rate 100 -duration 10s

DESCRIPTION:
    Generates synthetic users, products, interactions and sessions with
    realistic weighted distributions, and streams them as NDJSON at a
    controlled rate. Runs as an HTTP service by default; utility flags
    run one-shot modes instead.

CONFIGURATION:
    -config, -c <path>    Path to the YAML configuration file

OVERRIDE OPTIONS:
    -addr <addr>          HTTP listen address (e.g., :8000)
    -seed <n>             Random seed (fixed seed gives reproducible output)
    -rate <n>             Default stream rate in events/second
    -duration <dur>       Default stream duration (e.g., "30s", "2m")

UTILITY OPTIONS:
    -sample <kind>        Print one sample entity and exit
    -stream <kind>        Stream NDJSON to stdout and exit
    -validate             Validate configuration and exit
    -verbose, -v          Enable verbose logging
    -version              Show version information
    -help, -h             Show this help message

EXAMPLES:
    # Run the HTTP service with defaults
    clickstream-datagen

    # Run with a config file and a fixed seed
    clickstream-datagen -config configs/datagen.yaml -seed 42

    # Stream 100 interactions/second for 10 seconds to stdout
    clickstream-datagen -stream interactions -rate 100 -duration 10s

    # Print one sample user
    clickstream-datagen -sample users
`)
}

func main() {
	flag.Parse()

	if showVersion {
		printVersion()
		os.Exit(0)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	applyOverrides(cfg)

	if validate {
		fmt.Printf("Configuration '%s' is valid.\n", cfg.Name)
		os.Exit(0)
	}

	logger, err := newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	engine, closeEngine, err := buildEngine(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating engine: %v\n", err)
		os.Exit(1)
	}
	defer closeEngine()

	switch {
	case sampleKind != "":
		if err := runSample(engine, sampleKind); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case streamKind != "":
		if err := runStdoutStream(engine, cfg, streamKind); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	default:
		if err := runServer(cfg, engine, logger); err != nil {
			fmt.Fprintf(os.Stderr, "Error running server: %v\n", err)
			os.Exit(1)
		}
	}
}

func printVersion() {
	fmt.Printf("clickstream-datagen version %s\n", version)
	fmt.Printf("  Build time: %s\n", buildTime)
	fmt.Printf("  Git commit: %s\n", gitCommit)
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(configPath)
}

func applyOverrides(cfg *config.Config) {
	if listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}
	if seed != 0 {
		cfg.Generator.Seed = seed
	}
	if rateFlag > 0 {
		cfg.Stream.DefaultRate = rateFlag
	}
	if durFlag > 0 {
		cfg.Stream.DefaultDuration = durFlag
	}
}

func newLogger() (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zcfg.Build()
}

// buildEngine assembles the engine and the optional Kafka sink from the
// configuration. The returned close function flushes the sink.
func buildEngine(cfg *config.Config, logger *zap.Logger) (*stream.Engine, func(), error) {
	effectiveSeed := cfg.Generator.Seed
	if effectiveSeed == 0 {
		effectiveSeed = time.Now().UnixNano()
	}

	var sink stream.Sink
	closeSink := func() {}
	if cfg.Kafka.Enabled() {
		producer := broker.NewProducer(broker.Options{
			Brokers:      cfg.Kafka.Brokers,
			TopicPrefix:  cfg.Kafka.TopicPrefix,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			Logger:       logger,
		})
		sink = producer
		closeSink = func() {
			if err := producer.Close(); err != nil {
				logger.Warn("closing kafka producer", zap.Error(err))
			}
		}
	}

	engine, err := stream.NewEngine(stream.Options{
		Seed:             effectiveSeed,
		UserCacheSize:    cfg.Generator.UserCacheSize,
		ProductCacheSize: cfg.Generator.ProductCacheSize,
		Session:          cfg.Session,
		Logger:           logger,
		Sink:             sink,
	})
	if err != nil {
		closeSink()
		return nil, nil, err
	}

	engine.Warm(cfg.Generator.WarmUsers, cfg.Generator.WarmProducts)
	return engine, closeSink, nil
}

func runSample(engine *stream.Engine, kind string) error {
	record, err := engine.SampleEntity(model.EntityKind(kind))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(record)
}

// runStdoutStream streams NDJSON to stdout until the duration elapses or
// the process is interrupted.
func runStdoutStream(engine *stream.Engine, cfg *config.Config, kind string) error {
	st, err := engine.StartStream(stream.Config{
		Kind:     model.EntityKind(kind),
		Rate:     cfg.Stream.DefaultRate,
		Duration: cfg.Stream.DefaultDuration,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		st.Cancel()
	}()

	em := stream.NewEmitter(os.Stdout)
	_, err = em.Emit(context.Background(), st)
	return err
}

func runServer(cfg *config.Config, engine *stream.Engine, logger *zap.Logger) error {
	srv := server.New(cfg, engine, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
