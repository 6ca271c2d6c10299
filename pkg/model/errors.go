package model

import (
	"fmt"
	"time"
)

// ConfigurationError 路由规则配置错误（如 URL 模式非法）
type ConfigurationError struct {
	Pattern string
	Reason  string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid route pattern %q: %s: %v", e.Pattern, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid route pattern %q: %s", e.Pattern, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// RouteTimeoutError 等待的拦截在超时前未发生
type RouteTimeoutError struct {
	Route   RouteID
	Alias   string
	Timeout time.Duration
	Matched int64
}

func (e *RouteTimeoutError) Error() string {
	name := e.Alias
	if name == "" {
		name = string(e.Route)
	}
	return fmt.Sprintf("timed out after %s waiting for route %q to complete a request (matched so far: %d)", e.Timeout, name, e.Matched)
}

// AssertionTimeoutError 页面状态在超时前未达到预期
type AssertionTimeoutError struct {
	Description  string
	LastMismatch string
	Elapsed      time.Duration
	Attempts     int
	LastErr      error
}

func (e *AssertionTimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %s (%d attempts): expected %s", e.Elapsed.Round(time.Millisecond), e.Attempts, e.Description)
	if e.LastMismatch != "" {
		msg += ", but " + e.LastMismatch
	}
	if e.LastErr != nil {
		msg += fmt.Sprintf(" (last error: %v)", e.LastErr)
	}
	return msg
}

func (e *AssertionTimeoutError) Unwrap() error { return e.LastErr }

// HandlerError 用户提供的请求处理函数返回错误或发生 panic
type HandlerError struct {
	Route RouteID
	Alias string
	URL   string
	Err   error
}

func (e *HandlerError) Error() string {
	name := e.Alias
	if name == "" {
		name = string(e.Route)
	}
	return fmt.Sprintf("route %q handler failed for %s: %v", name, e.URL, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }
