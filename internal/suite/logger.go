package suite

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

const timestampFormat = "2006-01-02 15:04:05.000"

// TestLogger 接收用例生命周期通知
type TestLogger interface {
	TestStarted(id TestID)
	TestError(id TestID, err error)
	TestFinished(id TestID, failed bool, debugOutput CapturedOutput)
	TestSkipped(id TestID, reason string)
}

type nullTestLogger struct{}

func (n nullTestLogger) TestStarted(TestID)                        {}
func (n nullTestLogger) TestError(TestID, error)                   {}
func (n nullTestLogger) TestFinished(TestID, bool, CapturedOutput) {}
func (n nullTestLogger) TestSkipped(TestID, string)                {}

// CapturedMessage 一条调试输出
type CapturedMessage struct {
	Time    time.Time
	Message string
}

// CapturedOutput 单个用例的调试输出
type CapturedOutput []CapturedMessage

// CapturingLogger 缓存调试输出，只在需要时打印
type CapturingLogger struct {
	output []CapturedMessage
	lock   sync.Mutex
}

// Printf 记录一条调试输出
func (l *CapturingLogger) Printf(message string, args ...any) {
	l.lock.Lock()
	l.output = append(l.output, CapturedMessage{Time: time.Now(), Message: fmt.Sprintf(message, args...)})
	l.lock.Unlock()
}

// Output 返回已记录的输出
func (l *CapturingLogger) Output() CapturedOutput {
	l.lock.Lock()
	ret := append([]CapturedMessage(nil), l.output...)
	l.lock.Unlock()
	return ret
}

// Dump 逐行写出调试输出
func (output CapturedOutput) Dump(dest io.Writer, prefix string) {
	for _, m := range output {
		fmt.Fprintf(dest, "%s[%s] %s\n",
			prefix,
			m.Time.Format(timestampFormat),
			m.Message,
		)
	}
}

// ConsoleTestLogger 把用例进度写到终端
type ConsoleTestLogger struct {
	Out                  io.Writer
	DebugOutputOnFailure bool
	DebugOutputOnSuccess bool
}

var (
	failColor = color.New(color.FgRed, color.Bold)
	skipColor = color.New(color.FgYellow)
	passColor = color.New(color.FgGreen)
)

// TestStarted 打印用例路径
func (c *ConsoleTestLogger) TestStarted(id TestID) {
	fmt.Fprintf(c.Out, "[%s]\n", id)
}

// TestError 缩进打印错误
func (c *ConsoleTestLogger) TestError(_ TestID, err error) {
	for _, line := range strings.Split(err.Error(), "\n") {
		fmt.Fprintf(c.Out, "  %s\n", line)
	}
}

// TestFinished 打印失败标记与调试输出
func (c *ConsoleTestLogger) TestFinished(id TestID, failed bool, debugOutput CapturedOutput) {
	if failed {
		failColor.Fprintf(c.Out, "  FAILED: %s\n", id)
	}
	if len(debugOutput) > 0 &&
		((failed && c.DebugOutputOnFailure) || (!failed && c.DebugOutputOnSuccess)) {
		debugOutput.Dump(c.Out, "    DEBUG ")
	}
}

// TestSkipped 打印跳过原因
func (c *ConsoleTestLogger) TestSkipped(id TestID, reason string) {
	if reason == "" {
		skipColor.Fprintf(c.Out, "  SKIPPED: %s\n", id)
	} else {
		skipColor.Fprintf(c.Out, "  SKIPPED: %s (%s)\n", id, reason)
	}
}

// PrintResults 打印汇总
func PrintResults(out io.Writer, results Results) {
	ran := 0
	for _, r := range results.Tests {
		if !r.Skipped {
			ran++
		}
	}
	if results.OK() {
		passColor.Fprintf(out, "All %d tests passed (%d skipped)\n", ran, len(results.Skipped))
		return
	}
	failColor.Fprintf(out, "FAILED TESTS (%d of %d):\n", len(results.Failures), ran)
	for _, f := range results.Failures {
		fmt.Fprintf(out, "  * %s\n", f.TestID)
		for _, err := range f.Errors {
			for _, line := range strings.Split(err.Error(), "\n") {
				fmt.Fprintf(out, "      %s\n", line)
			}
		}
	}
}
