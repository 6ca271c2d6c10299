package suite

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/stretchr/testify/require"

	"cdpharness/internal/dogapp"
	"cdpharness/internal/driver"
	"cdpharness/pkg/api"
	"cdpharness/pkg/model"
)

type environment struct {
	ctx          context.Context
	results      Results
	testLogger   TestLogger
	filter       Filter
	service      api.Service
	session      model.SessionConfig
	capabilities map[string]bool
	api          *dogapp.APIChecker
	params       Params
}

// T 单个用例的上下文，实现 require.TestingT：断言失败时中止当前用例
type T struct {
	env         *environment
	id          TestID
	debugLogger CapturingLogger
	failed      bool
	skipped     bool
	skipReason  string
	errors      []error
	hasChildren bool
	sessionID   model.SessionID
	page        *driver.Session
}

func (t *T) run(action func(*T)) {
	defer func() {
		if r := recover(); r != nil && !t.skipped {
			t.failed = true
			var addError error
			if _, ok := r.(*T); ok {
				if len(t.errors) == 0 {
					addError = errors.New("test failed with no failure message")
				}
			} else {
				addError = fmt.Errorf("unexpected panic in test: %+v\n%s", r, string(debug.Stack()))
			}
			if addError != nil {
				t.errors = append(t.errors, addError)
				t.env.testLogger.TestError(t.id, addError)
			}
		}
		t.closeSession()
		if len(t.id.Path) == 0 || t.hasChildren {
			return
		}
		result := TestResult{TestID: t.id, Errors: t.errors, Skipped: t.skipped}
		t.env.results.Tests = append(t.env.results.Tests, result)
		switch {
		case t.skipped:
			t.env.results.Skipped = append(t.env.results.Skipped, result)
		case t.failed:
			t.env.results.Failures = append(t.env.results.Failures, result)
		}
	}()

	action(t)
}

// closeSession 拆除用例的浏览器会话，处理函数中的错误计为用例失败
func (t *T) closeSession() {
	if t.page == nil {
		return
	}
	id := t.sessionID
	t.page = nil
	if err := t.env.service.StopSession(id); err != nil {
		t.failed = true
		err = fmt.Errorf("teardown: %w", err)
		t.errors = append(t.errors, err)
		t.env.testLogger.TestError(t.id, err)
	}
}

// ID 返回用例路径
func (t *T) ID() TestID {
	return t.id
}

// Run 运行子用例
func (t *T) Run(name string, action func(*T)) {
	t.hasChildren = true
	id := TestID{Path: append(append([]string(nil), t.id.Path...), name)}

	t.env.testLogger.TestStarted(id)
	if t.env.filter != nil && !t.env.filter(id) {
		t.env.testLogger.TestSkipped(id, "excluded by filter parameters")
		t.env.results.Skipped = append(t.env.results.Skipped, TestResult{TestID: id, Skipped: true})
		return
	}
	t1 := &T{id: id, env: t.env}
	t1.run(action)
	if t1.skipped {
		t.env.testLogger.TestSkipped(id, t1.skipReason)
	} else {
		t.env.testLogger.TestFinished(id, t1.failed, t1.debugLogger.Output())
	}
}

// Errorf 记录失败但继续执行
func (t *T) Errorf(format string, args ...any) {
	t.failed = true
	err := fmt.Errorf(format, args...)
	t.errors = append(t.errors, err)
	t.env.testLogger.TestError(t.id, err)
}

// FailNow 立即结束当前用例
func (t *T) FailNow() {
	panic(t)
}

// Skip 跳过当前用例
func (t *T) Skip() {
	t.skipped = true
	panic(t)
}

// SkipWithReason 带原因跳过
func (t *T) SkipWithReason(reason string) {
	t.skipReason = reason
	t.Skip()
}

// RequireCapability 被测应用不具备该能力时跳过
func (t *T) RequireCapability(name string) {
	if !t.env.capabilities[name] {
		t.SkipWithReason(fmt.Sprintf("app does not have capability %q", name))
	}
}

// Debug 记录调试输出，用例失败时打印
func (t *T) Debug(message string, args ...any) {
	t.debugLogger.Printf(message, args...)
}

// Context 返回整个运行共用的上下文
func (t *T) Context() context.Context {
	return t.env.ctx
}

// Params 返回运行参数
func (t *T) Params() Params {
	return t.env.params
}

// Page 返回用例独占的浏览器会话，首次调用时创建，用例结束时拆除
func (t *T) Page() *driver.Session {
	if t.page == nil {
		id, err := t.env.service.StartSession(t.env.ctx, t.env.session)
		require.NoError(t, err, "start browser session")
		page, err := t.env.service.Session(id)
		require.NoError(t, err)
		t.sessionID, t.page = id, page
		t.Debug("session %s started", id)
	}
	return t.page
}

// API 返回直接访问后端接口的校验器
func (t *T) API() *dogapp.APIChecker {
	return t.env.api
}
