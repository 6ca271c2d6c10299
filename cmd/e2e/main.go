package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cdpharness/internal/config"
	"cdpharness/internal/logger"
	"cdpharness/internal/suite"
	"cdpharness/pkg/api"
)

func main() {
	var params commandParams
	if !params.Read(os.Args) {
		os.Exit(1)
	}
	os.Exit(run(params))
}

func run(params commandParams) int {
	cfg, err := config.Load(params.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %s\n", err)
		return 1
	}
	applyOverrides(cfg, &params)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %s\n", err)
		return 1
	}

	logOpts := cfg.LoggerOptions()
	if params.debugAll {
		logOpts.Level = "debug"
	}
	l := logger.New(logOpts)

	svc, err := api.NewService(l, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service error: %s\n", err)
		return 1
	}
	defer func() {
		if err := svc.Close(); err != nil {
			l.Err(err, "关闭服务失败")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if params.listTargets {
		return printTargets(ctx, svc, cfg.Browser.DevToolsURL)
	}

	fmt.Println()
	printFilterDescription(params.filters, cfg)

	fmt.Println("Running test suite")
	testLogger := &suite.ConsoleTestLogger{
		Out:                  os.Stdout,
		DebugOutputOnFailure: params.debug || params.debugAll,
		DebugOutputOnSuccess: params.debugAll,
	}
	suiteParams := suite.DefaultParams()
	if params.slowDelayMS > 0 {
		suiteParams.SlowResponseDelay = time.Duration(params.slowDelayMS) * time.Millisecond
	}
	results := suite.RunSuite(ctx, suite.Config{
		Service:      svc,
		Session:      cfg.SessionConfig(),
		Capabilities: cfg.Test.Capabilities,
		Params:       suiteParams,
	}, params.filters.AsFilter, testLogger)

	fmt.Println()
	suite.PrintResults(os.Stdout, results)
	if !results.OK() {
		fmt.Println()
		fmt.Println("To rerun the failed tests:")
		fmt.Printf("  %s\n", params.rerunCommand(results))
		return 1
	}
	return 0
}

// applyOverrides 命令行参数覆盖配置文件
func applyOverrides(cfg *config.Config, params *commandParams) {
	if params.devtoolsURL != "" {
		cfg.Browser.DevToolsURL = params.devtoolsURL
	}
	if params.targetID != "" {
		cfg.Browser.TargetID = params.targetID
	}
	if params.baseURL != "" {
		cfg.App.BaseURL = params.baseURL
	}
	if params.journal {
		cfg.Sqlite.Enabled = true
	}
	cfg.Test.Capabilities = append(cfg.Test.Capabilities, params.capabilities...)
	// 配置文件中的过滤条件与命令行叠加
	for _, p := range cfg.Test.Run {
		if err := params.filters.MustMatch.Set(p); err != nil {
			fmt.Fprintf(os.Stderr, "Ignoring test.run pattern %q: %s\n", p, err)
		}
	}
	for _, p := range cfg.Test.Skip {
		if err := params.filters.MustNotMatch.Set(p); err != nil {
			fmt.Fprintf(os.Stderr, "Ignoring test.skip pattern %q: %s\n", p, err)
		}
	}
}

func printTargets(ctx context.Context, svc api.Service, devtoolsURL string) int {
	targets, err := svc.ListTargets(ctx, devtoolsURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot list targets: %s\n", err)
		return 1
	}
	for _, t := range targets {
		fmt.Printf("%s  %s  %s\n", t.ID, t.URL, t.Title)
	}
	return 0
}

func printFilterDescription(filters suite.RegexFilters, cfg *config.Config) {
	if filters.MustMatch.IsDefined() || filters.MustNotMatch.IsDefined() {
		fmt.Println("Some tests will be skipped based on the filter criteria for this test run:")
		if filters.MustMatch.IsDefined() {
			fmt.Printf("  skip any not matching %s\n", filters.MustMatch)
		}
		if filters.MustNotMatch.IsDefined() {
			fmt.Printf("  skip any matching %s\n", filters.MustNotMatch)
		}
		fmt.Println()
	}

	var missing []string
	for _, c := range suite.AllCapabilities {
		if !cfg.HasCapability(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		fmt.Println("Some tests may be skipped because the app does not declare the following capabilities:")
		fmt.Printf("  %s\n", strings.Join(missing, ", "))
		fmt.Println()
	}
}
