// Package suite 用 Go 重写 Dog Image Browser 的端到端场景，并提供运行它们的小框架。
package suite

import (
	"context"
	"time"

	"cdpharness/internal/dogapp"
	"cdpharness/pkg/api"
	"cdpharness/pkg/model"
)

// CapabilityErrorDisplay 应用会把后端失败渲染成错误提示
const CapabilityErrorDisplay = "error-display"

// AllCapabilities 场景可能依赖的全部能力
var AllCapabilities = []string{CapabilityErrorDisplay}

// Params 场景参数
type Params struct {
	SlowResponseDelay time.Duration // 慢响应场景的延迟
	ImageTimeout      time.Duration // 等待图片出现的超时
}

// DefaultParams 默认参数
func DefaultParams() Params {
	return Params{SlowResponseDelay: 3 * time.Second, ImageTimeout: 10 * time.Second}
}

// Config 运行配置
type Config struct {
	Service      api.Service
	Session      model.SessionConfig
	Capabilities []string
	Params       Params
}

// Run 以给定过滤条件运行 action 中定义的用例
func Run(ctx context.Context, cfg Config, filter Filter, testLogger TestLogger, action func(*T)) Results {
	if testLogger == nil {
		testLogger = nullTestLogger{}
	}
	params := cfg.Params
	def := DefaultParams()
	if params.SlowResponseDelay <= 0 {
		params.SlowResponseDelay = def.SlowResponseDelay
	}
	if params.ImageTimeout <= 0 {
		params.ImageTimeout = def.ImageTimeout
	}
	env := &environment{
		ctx:          ctx,
		filter:       filter,
		testLogger:   testLogger,
		service:      cfg.Service,
		session:      cfg.Session,
		capabilities: map[string]bool{},
		api:          dogapp.NewAPIChecker(cfg.Session.BaseURL),
		params:       params,
	}
	for _, c := range cfg.Capabilities {
		env.capabilities[c] = true
	}
	t := &T{env: env}
	t.run(action)
	return env.results
}

// RunSuite 运行全部场景
func RunSuite(ctx context.Context, cfg Config, filter Filter, testLogger TestLogger) Results {
	return Run(ctx, cfg, filter, testLogger, func(t *T) {
		t.Run("homepage", DoHomepageTests)
		t.Run("fetch dog", DoFetchTests)
		t.Run("breed selection", DoBreedSelectionTests)
		t.Run("api mocking", DoAPIMockingTests)
		t.Run("api validation", DoAPIValidationTests)
		t.Run("user journey", DoUserJourneyTests)
	})
}
