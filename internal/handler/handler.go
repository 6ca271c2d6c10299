package handler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	cdpconv "cdpharness/internal/adapter/cdp"
	"cdpharness/internal/logger"
	"cdpharness/internal/route"
	"cdpharness/pkg/model"
	"cdpharness/pkg/routespec"
	"cdpharness/pkg/traffic"
)

// 拦截阶段
const (
	StageRequest  = "request"
	StageResponse = "response"
)

// 最终处理结果
const (
	ResultFulfilled = "fulfilled"
	ResultPassed    = "passed"
	ResultBlocked   = "blocked"
	ResultFailed    = "failed"
)

// Executor 执行拦截动作，由 CDP 层实现
type Executor interface {
	ContinueRequest(ctx context.Context, requestID string) error
	ContinueResponse(ctx context.Context, requestID string) error
	Fulfill(ctx context.Context, requestID string, res *traffic.Response) error
	Fail(ctx context.Context, requestID string, reason string) error
	ResponseBody(ctx context.Context, requestID string) ([]byte, error)
}

// Handler 事件处理器，负责协调路由匹配、响应执行和事件发送
type Handler struct {
	table          *route.Table
	executor       Executor
	events         chan model.Event
	blockUnmatched bool
	session        model.SessionID
	target         model.TargetID
	log            logger.Logger

	mu      sync.Mutex
	pending map[string]*pendingSpy
	errs    []error
}

// Config 配置选项
type Config struct {
	Table          *route.Table
	Executor       Executor
	Events         chan model.Event
	BlockUnmatched bool
	Session        model.SessionID
	Target         model.TargetID
	Logger         logger.Logger
}

// pendingSpy 已放行、等待响应阶段完成的请求
type pendingSpy struct {
	route *route.Route
	in    *model.Interception
}

// New 创建事件处理器
func New(cfg Config) *Handler {
	l := cfg.Logger
	if l == nil {
		l = logger.NewNop()
	}
	return &Handler{
		table:          cfg.Table,
		executor:       cfg.Executor,
		events:         cfg.Events,
		blockUnmatched: cfg.BlockUnmatched,
		session:        cfg.Session,
		target:         cfg.Target,
		log:            l,
		pending:        make(map[string]*pendingSpy),
	}
}

// SetBlockUnmatched 切换未匹配请求的处理方式
func (h *Handler) SetBlockUnmatched(v bool) {
	h.mu.Lock()
	h.blockUnmatched = v
	h.mu.Unlock()
}

// HandleRequest 处理请求阶段的拦截
func (h *Handler) HandleRequest(ctx context.Context, req *traffic.Request) {
	start := time.Now()
	l := h.log.With("requestID", req.ID, "method", req.Method, "url", req.URL)

	r := h.table.Match(req)
	if r == nil {
		h.handleUnmatched(ctx, req, l)
		return
	}

	rule := r.Rule()
	rid := r.ID()
	in := &model.Interception{Request: cdpconv.ToRequestInfo(req), MatchedAt: start}
	h.sendEvent(model.Event{Type: model.EventMatched, Route: &rid, Alias: rule.Alias, URL: req.URL, Method: req.Method, Stage: StageRequest})
	l.Debug("请求命中路由", "route", string(rid), "alias", rule.Alias, "kind", rule.Kind())

	switch rule.Kind() {
	case "stub":
		h.fulfill(ctx, r, req, rule.Response.Clone(), in, l)
	case "handler":
		res, err := h.runHandler(rule.Handler, req)
		if err != nil {
			herr := &model.HandlerError{Route: rid, Alias: rule.Alias, URL: req.URL, Err: err}
			h.recordError(herr)
			l.Err(err, "路由处理函数失败，请求放行")
			if cerr := h.executor.ContinueRequest(ctx, req.ID); cerr != nil {
				l.Err(cerr, "放行请求失败")
			}
			in.Result = ResultFailed
			in.Err = herr
			in.CompletedAt = time.Now()
			r.Complete(in)
			h.sendEvent(model.Event{Type: model.EventFailed, Route: &rid, Alias: rule.Alias, URL: req.URL, Method: req.Method, Stage: StageRequest, Error: herr.Error()})
			return
		}
		if res != nil {
			h.fulfill(ctx, r, req, res, in, l)
			return
		}
		h.passThrough(ctx, r, req, in, l)
	default:
		h.passThrough(ctx, r, req, in, l)
	}
}

// HandleResponse 处理响应阶段的拦截；只有放行过的已匹配请求在此完成
func (h *Handler) HandleResponse(ctx context.Context, req *traffic.Request, res *traffic.Response) {
	h.mu.Lock()
	p, ok := h.pending[req.ID]
	delete(h.pending, req.ID)
	h.mu.Unlock()

	if ok {
		if len(res.Body) == 0 && !isRedirect(res.StatusCode) {
			body, err := h.executor.ResponseBody(ctx, req.ID)
			if err != nil {
				h.log.Debug("读取响应体失败", "requestID", req.ID, "error", err)
			} else {
				res.Body = body
			}
		}
		rid := p.route.ID()
		p.in.Response = cdpconv.ToResponseInfo(res)
		p.in.Result = ResultPassed
		p.in.CompletedAt = time.Now()
		p.route.Complete(p.in)
		h.sendEvent(model.Event{Type: model.EventCompleted, Route: &rid, Alias: p.route.Alias(), URL: req.URL, Method: req.Method, Stage: StageResponse, StatusCode: res.StatusCode})
	}

	if err := h.executor.ContinueResponse(ctx, req.ID); err != nil {
		h.log.Err(err, "继续响应失败", "requestID", req.ID)
	}
}

// HandleLoadingFailed 放行的请求在网络层失败时完成等待
func (h *Handler) HandleLoadingFailed(req *traffic.Request, reason string) {
	h.mu.Lock()
	p, ok := h.pending[req.ID]
	delete(h.pending, req.ID)
	h.mu.Unlock()
	if !ok {
		return
	}
	p.in.Result = ResultFailed
	p.in.CompletedAt = time.Now()
	p.in.Response = model.ResponseInfo{Headers: map[string]string{}, Body: reason}
	p.route.Complete(p.in)
}

// Reset 丢弃未完成的放行请求并返回期间记录的处理函数错误
func (h *Handler) Reset() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending = make(map[string]*pendingSpy)
	errs := h.errs
	h.errs = nil
	return errs
}

// Errors 返回已记录的处理函数错误
func (h *Handler) Errors() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]error(nil), h.errs...)
}

func (h *Handler) handleUnmatched(ctx context.Context, req *traffic.Request, l logger.Logger) {
	h.mu.Lock()
	block := h.blockUnmatched
	h.mu.Unlock()

	if block {
		if err := h.executor.Fail(ctx, req.ID, "BlockedByClient"); err != nil {
			l.Err(err, "阻止请求失败")
		}
		h.sendEvent(model.Event{Type: model.EventBlocked, URL: req.URL, Method: req.Method, Stage: StageRequest})
		l.Debug("未匹配请求已阻止")
		return
	}
	if err := h.executor.ContinueRequest(ctx, req.ID); err != nil {
		l.Err(err, "放行请求失败")
	}
	h.sendEvent(model.Event{Type: model.EventUnmatched, URL: req.URL, Method: req.Method, Stage: StageRequest})
}

// fulfill 延迟后以合成响应回复，延迟结束前不记录完成
func (h *Handler) fulfill(ctx context.Context, r *route.Route, req *traffic.Request, res *traffic.Response, in *model.Interception, l logger.Logger) {
	rid := r.ID()
	if res.Delay > 0 {
		l.Debug("延迟响应", "delay", res.Delay)
		t := time.NewTimer(res.Delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			l.Warn("延迟期间会话结束，放弃响应")
			return
		}
	}

	if err := h.executor.Fulfill(ctx, req.ID, res); err != nil {
		l.Err(err, "合成响应失败")
		in.Err = fmt.Errorf("fulfill %s %s: %w", req.Method, req.URL, err)
		in.Result = ResultFailed
	} else {
		in.Result = ResultFulfilled
	}
	in.Response = cdpconv.ToResponseInfo(res)
	in.CompletedAt = time.Now()
	r.Complete(in)
	h.sendEvent(model.Event{Type: model.EventFulfilled, Route: &rid, Alias: r.Alias(), URL: req.URL, Method: req.Method, Stage: StageRequest, StatusCode: res.StatusCode})
	l.Debug("请求已合成响应", "status", res.StatusCode, "duration", time.Since(in.MatchedAt))
}

// passThrough 放行到真实网络，在响应阶段完成记录
func (h *Handler) passThrough(ctx context.Context, r *route.Route, req *traffic.Request, in *model.Interception, l logger.Logger) {
	h.mu.Lock()
	h.pending[req.ID] = &pendingSpy{route: r, in: in}
	h.mu.Unlock()

	if err := h.executor.ContinueRequest(ctx, req.ID); err != nil {
		l.Err(err, "放行请求失败")
		h.mu.Lock()
		delete(h.pending, req.ID)
		h.mu.Unlock()
		in.Err = fmt.Errorf("continue %s %s: %w", req.Method, req.URL, err)
		in.Result = ResultFailed
		in.CompletedAt = time.Now()
		r.Complete(in)
		return
	}
	rid := r.ID()
	h.sendEvent(model.Event{Type: model.EventPassed, Route: &rid, Alias: r.Alias(), URL: req.URL, Method: req.Method, Stage: StageRequest})
}

// runHandler 同步执行处理函数，panic 视为错误
func (h *Handler) runHandler(fn routespec.HandlerFunc, req *traffic.Request) (res *traffic.Response, err error) {
	view := routespec.NewIntercepted(req)
	defer func() {
		if p := recover(); p != nil {
			res = nil
			err = fmt.Errorf("panic: %v\n%s", p, debug.Stack())
		}
	}()
	if err := fn(view); err != nil {
		return nil, err
	}
	if err := view.Err(); err != nil {
		return nil, err
	}
	return view.Response(), nil
}

func (h *Handler) recordError(err error) {
	h.mu.Lock()
	h.errs = append(h.errs, err)
	h.mu.Unlock()
}

// sendEvent 安全发送事件到通道，自动添加时间戳
func (h *Handler) sendEvent(evt model.Event) {
	if h.events == nil {
		return
	}
	evt.Session = h.session
	evt.Target = h.target
	evt.Timestamp = time.Now().UnixMilli()
	select {
	case h.events <- evt:
	default:
	}
}

func isRedirect(code int) bool {
	return code >= 300 && code < 400
}
