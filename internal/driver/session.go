package driver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"cdpharness/internal/handler"
	"cdpharness/internal/logger"
	"cdpharness/internal/poll"
	"cdpharness/internal/route"
	"cdpharness/pkg/model"
	"cdpharness/pkg/routespec"
)

// DefaultRouteTimeout Wait 的默认超时
const DefaultRouteTimeout = 5 * time.Second

// Page 浏览器页面能力，由 CDP 连接实现
type Page interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	Evaluate(ctx context.Context, expr string) (json.RawMessage, error)
	DispatchClick(ctx context.Context, x, y float64) error
}

// Options 会话选项
type Options struct {
	BaseURL      string
	Timeout      time.Duration // 断言默认超时
	Interval     time.Duration // 断言轮询间隔
	RouteTimeout time.Duration // Wait 默认超时
	Logger       logger.Logger
}

// Option 单次调用的覆盖参数
type Option func(*poll.Options)

// WithTimeout 覆盖单次断言的超时
func WithTimeout(d time.Duration) Option {
	return func(o *poll.Options) { o.Timeout = d }
}

// WithInterval 覆盖单次断言的轮询间隔
func WithInterval(d time.Duration) Option {
	return func(o *poll.Options) { o.Interval = d }
}

// Session 一个测试用例对应的驱动会话：一个页面、一张路由表
type Session struct {
	id      model.SessionID
	page    Page
	table   *route.Table
	handler *handler.Handler
	opts    Options
	log     logger.Logger
}

// NewSession 创建驱动会话
func NewSession(id model.SessionID, page Page, table *route.Table, h *handler.Handler, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = poll.DefaultTimeout
	}
	if opts.Interval <= 0 {
		opts.Interval = poll.DefaultInterval
	}
	if opts.RouteTimeout <= 0 {
		opts.RouteTimeout = DefaultRouteTimeout
	}
	return &Session{
		id:      id,
		page:    page,
		table:   table,
		handler: h,
		opts:    opts,
		log:     opts.Logger.With("session", string(id)),
	}
}

// ID 返回会话ID
func (s *Session) ID() model.SessionID { return s.id }

// Visit 导航到相对 BaseURL 的路径
func (s *Session) Visit(ctx context.Context, path string) error {
	target, err := s.resolve(path)
	if err != nil {
		return err
	}
	s.log.Info("访问页面", "url", target)
	return s.page.Navigate(ctx, target)
}

// Reload 重新加载当前页面
func (s *Session) Reload(ctx context.Context) error {
	s.log.Info("重新加载页面")
	return s.page.Reload(ctx)
}

func (s *Session) resolve(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse path %q: %w", path, err)
	}
	if ref.IsAbs() || s.opts.BaseURL == "" {
		return ref.String(), nil
	}
	base, err := url.Parse(s.opts.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url %q: %w", s.opts.BaseURL, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// Intercept 注册路由，必须在触发请求的动作之前调用
func (s *Session) Intercept(rule routespec.Rule) (*route.Route, error) {
	r, err := s.table.Register(rule)
	if err != nil {
		return nil, err
	}
	s.log.Info("注册拦截路由", "route", string(r.ID()), "alias", rule.Alias, "method", rule.Method, "pattern", rule.URLPattern)
	return r, nil
}

// Wait 等待路由完成下一次拦截；timeout 为 0 时使用默认值
func (s *Session) Wait(ctx context.Context, r *route.Route, timeout time.Duration) (*model.Interception, error) {
	if timeout <= 0 {
		timeout = s.opts.RouteTimeout
	}
	in, err := r.Await(ctx, timeout)
	if err != nil {
		s.log.Warn("等待路由失败", "route", string(r.ID()), "alias", r.Alias(), "error", err)
		return in, err
	}
	s.log.Debug("路由已完成", "route", string(r.ID()), "alias", r.Alias(), "status", in.Response.StatusCode, "duration", in.Duration())
	return in, nil
}

// SetBlockUnmatched 开启后未匹配的请求将被阻止
func (s *Session) SetBlockUnmatched(v bool) {
	if s.handler != nil {
		s.handler.SetBlockUnmatched(v)
	}
}

// Stats 返回路由匹配统计
func (s *Session) Stats() model.EngineStats {
	return s.table.Stats()
}

// Eventually 以会话默认参数轮询任意谓词
func (s *Session) Eventually(ctx context.Context, description string, check poll.Check, opts ...Option) error {
	return poll.Eventually(ctx, check, s.pollOptions(description, opts))
}

func (s *Session) pollOptions(description string, opts []Option) poll.Options {
	o := poll.Options{Timeout: s.opts.Timeout, Interval: s.opts.Interval, Description: description}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Teardown 拆除本会话的全部路由，返回测试期间处理函数产生的错误
func (s *Session) Teardown() error {
	s.table.Reset()
	var errs []error
	if s.handler != nil {
		errs = s.handler.Reset()
	}
	if len(errs) > 0 {
		s.log.Warn("会话结束时存在处理函数错误", "count", len(errs))
	}
	return errors.Join(errs...)
}

// snapshot 读取元素的即时状态
func (s *Session) snapshot(ctx context.Context, id string) (ElementState, error) {
	raw, err := s.page.Evaluate(ctx, snapshotScript(id))
	if err != nil {
		return ElementState{}, err
	}
	return parseState(raw)
}
