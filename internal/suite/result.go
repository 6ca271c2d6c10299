package suite

import "strings"

// Results 一次运行的全部结果
type Results struct {
	Tests    []TestResult
	Failures []TestResult
	Skipped  []TestResult
}

// TestResult 单个用例的结果
type TestResult struct {
	TestID  TestID
	Errors  []error
	Skipped bool
}

// OK 没有失败的用例
func (r Results) OK() bool {
	return len(r.Failures) == 0
}

// TestID 用例路径，例如 api-mocking/successful response
type TestID struct {
	Path []string
}

func (t TestID) String() string {
	return strings.Join(t.Path, "/")
}
