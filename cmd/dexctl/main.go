package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"dexcore/config"
	"dexcore/core/clock"
	"dexcore/core/runtime"
	"dexcore/observability/logging"
	telemetry "dexcore/observability/otel"
	"dexcore/storage"
)

const defaultConfig = "./config.toml"

// globals are the flags accepted before the command name.
type globals struct {
	configPath string
	block      clock.BlockInfo
	memory     bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	g, args, err := applyGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}
	name := strings.ToLower(args[0])
	if name == "help" {
		printUsage(stdout)
		return 0
	}

	cfg, err := config.Load(g.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: load config: %v\n", err)
		return 1
	}
	if g.memory {
		cfg.StorageBackend = config.BackendMemory
	}
	logger := logging.Setup("dexctl", cfg.Environment,
		logging.WithLevel(cfg.LogLevel),
		logging.WithWriter(stderr),
		logging.WithFile(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups))
	ctx := context.Background()
	headers := cfg.Telemetry.Headers
	if raw := os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"); raw != "" {
		headers = telemetry.ParseHeaders(raw)
		for k, v := range cfg.Telemetry.Headers {
			if _, ok := headers[k]; !ok {
				headers[k] = v
			}
		}
	}
	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     headers,
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error: telemetry: %v\n", err)
		return 1
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	db, err := storage.Open(cfg.StorageBackend, cfg.DataDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer db.Close()

	manual := clock.NewManual(g.block)
	opts := []runtime.Option{runtime.WithClock(manual), runtime.WithLogger(logger)}
	if cfg.Telemetry.Metrics {
		opts = append(opts, runtime.WithMetrics())
	}
	rt, err := runtime.New(ctx, cfg, db, opts...)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if name == "run" {
		if len(args) < 2 {
			fmt.Fprintln(stderr, "Usage: dexctl run <script.yaml>")
			return 1
		}
		if err := runScript(ctx, rt, manual, args[1], stdout, logger); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}
	result, err := dispatch(ctx, rt, name, args[1:])
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := printResult(stdout, result); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func applyGlobalFlags(args []string) (globals, []string, error) {
	g := globals{configPath: defaultConfig}
	for len(args) > 0 && strings.HasPrefix(args[0], "--") {
		flagName, value, hasValue := strings.Cut(strings.TrimPrefix(args[0], "--"), "=")
		args = args[1:]
		if flagName == "memory" {
			g.memory = true
			continue
		}
		if !hasValue {
			if len(args) == 0 {
				return g, nil, fmt.Errorf("flag --%s requires a value", flagName)
			}
			value, args = args[0], args[1:]
		}
		if flagName == "config" {
			g.configPath = value
			continue
		}
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return g, nil, fmt.Errorf("flag --%s: %w", flagName, err)
		}
		switch flagName {
		case "round":
			g.block.Round = n
		case "epoch":
			g.block.Epoch = n
		case "block":
			g.block.Nonce = n
		case "timestamp":
			g.block.Timestamp = n
		default:
			return g, nil, fmt.Errorf("unknown flag --%s", flagName)
		}
	}
	return g, args, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: dexctl [--config path] [--memory] [--round n] [--epoch n] [--block n] <command> [args]")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  run <script.yaml>             Execute a scenario script")
	for _, name := range commandNames() {
		fmt.Fprintf(w, "  %-29s %s\n", name+" "+commands[name].usage, commands[name].help)
	}
}
