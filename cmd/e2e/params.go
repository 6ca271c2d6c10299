package main

import (
	"flag"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/alessio/shellescape"

	"cdpharness/internal/suite"
)

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type commandParams struct {
	configPath   string
	devtoolsURL  string
	targetID     string
	baseURL      string
	filters      suite.RegexFilters
	capabilities stringList
	slowDelayMS  int
	listTargets  bool
	journal      bool
	debug        bool
	debugAll     bool
}

func (c *commandParams) Read(args []string) bool {
	fs := flag.NewFlagSet("", flag.ExitOnError)
	fs.StringVar(&c.configPath, "config", "", "YAML config file")
	fs.StringVar(&c.devtoolsURL, "devtools", "", "browser DevTools URL (overrides config)")
	fs.StringVar(&c.targetID, "target", "", "page target ID to attach to (default: first page)")
	fs.StringVar(&c.baseURL, "base-url", "", "base URL of the app under test (overrides config)")
	fs.Var(&c.filters.MustMatch, "run", "regex pattern(s) to select tests to run")
	fs.Var(&c.filters.MustNotMatch, "skip", "regex pattern(s) to select tests not to run")
	fs.Var(&c.capabilities, "capability", "capability of the app under test, may be repeated")
	fs.IntVar(&c.slowDelayMS, "slow-delay-ms", 0, "delay for the slow response scenario")
	fs.BoolVar(&c.listTargets, "list-targets", false, "list page targets and exit")
	fs.BoolVar(&c.journal, "journal", false, "record interception events to sqlite")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging for failed tests")
	fs.BoolVar(&c.debugAll, "debug-all", false, "enable debug logging for all tests")

	if err := fs.Parse(args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fs.Usage()
		return false
	}
	return true
}

// rerunCommand 只重跑失败用例的命令行
func (c *commandParams) rerunCommand(results suite.Results) string {
	var cmd commandBuilder
	cmd.add(os.Args[0])
	if c.configPath != "" {
		cmd.add("-config", c.configPath)
	}
	if c.devtoolsURL != "" {
		cmd.add("-devtools", c.devtoolsURL)
	}
	if c.baseURL != "" {
		cmd.add("-base-url", c.baseURL)
	}
	for _, capability := range c.capabilities {
		cmd.add("-capability", capability)
	}
	for _, f := range results.Failures {
		cmd.add("-run", anchoredPattern(f.TestID))
	}
	cmd.add("-debug")
	return cmd.String()
}

// anchoredPattern 逐级精确匹配用例路径的 -run 参数
func anchoredPattern(id suite.TestID) string {
	elems := make([]string, len(id.Path))
	for i, p := range id.Path {
		elems[i] = "^" + regexp.QuoteMeta(p) + "$"
	}
	return strings.Join(elems, "/")
}

type commandBuilder []string

func (b *commandBuilder) add(args ...string) {
	for _, a := range args {
		*b = append(*b, shellescape.Quote(a))
	}
}

func (b commandBuilder) String() string {
	return strings.Join(b, " ")
}
