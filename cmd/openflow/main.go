// OpenFlow 命令行入口
//
//	openflow serve [--config config.yaml]
//	openflow run [--input JSON | --input-file PATH] wf.yaml
//	openflow nodes | tools | version | health [--addr URL]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/openflow/config"
	"github.com/BaSui01/openflow/internal/telemetry"
	"github.com/BaSui01/openflow/llm/tools"
	"github.com/BaSui01/openflow/types"
	"github.com/BaSui01/openflow/workflow"
)

// 构建时通过 -ldflags 注入
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

type command struct {
	name    string
	summary string
	run     func(args []string, out io.Writer) error
}

var commands []command

func init() {
	commands = []command{
		{"serve", "Start the HTTP API server", func(args []string, _ io.Writer) error { return runServe(args) }},
		{"run", "Execute a workflow file locally and print the result", runWorkflow},
		{"nodes", "List registered node types", runNodes},
		{"tools", "List built-in agent tools", func(_ []string, out io.Writer) error { return printTools(out) }},
		{"version", "Show version information", func(_ []string, out io.Writer) error { printVersion(out); return nil }},
		{"health", "Check server health", runHealthCheck},
		{"help", "Show this help message", func(_ []string, out io.Writer) error { printUsage(out); return nil }},
	}
}

func main() {
	os.Exit(dispatch(os.Args[1:], os.Stdout, os.Stderr))
}

// dispatch 运行子命令并返回进程退出码：成功 0，执行失败 1，用法错误 2
func dispatch(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}
	name := args[0]
	if name == "-h" || name == "--help" {
		name = "help"
	}
	for _, c := range commands {
		if c.name != name {
			continue
		}
		err := c.run(args[1:], stdout)
		switch {
		case err == nil:
			return 0
		case errors.Is(err, flag.ErrHelp):
			return 0
		default:
			fmt.Fprintln(stderr, err)
			return 1
		}
	}
	fmt.Fprintf(stderr, "Unknown command: %s\n", name)
	printUsage(stderr)
	return 2
}

// newFlags 解析失败时返回错误而不是退出进程
func newFlags(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file (YAML)")
	return fs, configPath
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.NewLoader().
		WithConfigPath(path).
		WithValidator((*config.Config).Validate).
		Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func runServe(args []string) error {
	fs, configPath := newFlags("serve")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()
	logger.Info("Starting OpenFlow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	tp, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		// 追踪不可用时仍然提供服务
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown error", zap.Error(err))
		}
	}()

	srv, err := NewServer(cfg, logger, tp)
	if err != nil {
		logger.Error("Failed to start server", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := srv.Run(ctx); err != nil {
		return err
	}
	logger.Info("OpenFlow stopped")
	return nil
}

// runWorkflow 结果以缩进 JSON 写到 out，日志固定写 stderr
func runWorkflow(args []string, out io.Writer) error {
	fs, configPath := newFlags("run")
	input := fs.String("input", "", "Input payload as a JSON object")
	inputFile := fs.String("input-file", "", "Path to a JSON file holding the input payload")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: openflow run [--input JSON | --input-file PATH] <workflow.json|yaml>")
	}

	payload, err := readInput(*input, *inputFile)
	if err != nil {
		return err
	}
	wf, err := workflow.LoadFile(fs.Arg(0))
	if err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	cfg.Log.OutputPaths = []string{"stderr"}
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	rt := buildRuntime(cfg, logger, nil, nil)
	defer func() { _ = rt.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := rt.engine.Run(types.WithWorkflowID(ctx, wf.ID), wf, payload)
	if err != nil {
		return fmt.Errorf("execution failed: %s", types.Describe(err))
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// readInput 两个来源都为空时输入为 {}
func readInput(inline, path string) (types.Object, error) {
	if inline != "" && path != "" {
		return nil, errors.New("--input and --input-file are mutually exclusive")
	}
	data := []byte(inline)
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		data = b
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return types.Object{}, nil
	}

	var obj types.Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("input must be a JSON object: %w", err)
	}
	if obj == nil {
		obj = types.Object{}
	}
	return obj, nil
}

func runNodes(args []string, out io.Writer) error {
	fs, configPath := newFlags("nodes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	rt := buildRuntime(cfg, zap.NewNop(), nil, nil)
	defer func() { _ = rt.Close() }()

	for _, spec := range rt.registry.ListSpecs() {
		if _, err := fmt.Fprintf(out, "%-18s %s\n", spec.Type, spec.Description); err != nil {
			return err
		}
	}
	return nil
}

func printTools(out io.Writer) error {
	for _, entry := range tools.ToolCatalog() {
		if _, err := fmt.Fprintf(out, "%-14s %s\n", entry.Name, entry.Description); err != nil {
			return err
		}
	}
	return nil
}

func runHealthCheck(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	addr := fs.String("addr", "http://localhost:8000", "Server address")
	timeout := fs.Duration("timeout", 5*time.Second, "Request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client := &http.Client{Timeout: *timeout}
	resp, err := client.Get(strings.TrimRight(*addr, "/") + "/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}
	_, err = fmt.Fprintln(out, "OK")
	return err
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "OpenFlow %s\n  Build Time: %s\n  Git Commit: %s\n", Version, BuildTime, GitCommit)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, "OpenFlow - workflow graph engine with agent chains\n\nUsage:\n  openflow <command> [options]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-9s %s\n", c.name, c.summary)
	}
	fmt.Fprint(w, `
Options for 'serve', 'run' and 'nodes':
  --config <path>       Path to configuration file (YAML)

Options for 'run':
  --input <json>        Input payload as a JSON object
  --input-file <path>   Read the input payload from a file

Examples:
  openflow serve --config /etc/openflow/config.yaml
  openflow run --input '{"message": "What is 2+2?"}' workflows/agent.yaml
  openflow health --addr http://localhost:8000
`)
}

// initLogger 构建失败时退回 zap.NewProduction
func initLogger(cfg config.LogConfig) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.NewProductionConfig()
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Sampling = nil
	zc.OutputPaths = cfg.OutputPaths
	if len(zc.OutputPaths) == 0 {
		zc.OutputPaths = []string{"stdout"}
	}
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.DisableCaller = !cfg.EnableCaller
	zc.DisableStacktrace = !cfg.EnableStacktrace

	logger, err := zc.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
