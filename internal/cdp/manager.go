package cdp

import (
	"context"
	"fmt"
	"sync"
	"time"

	cdpconv "cdpharness/internal/adapter/cdp"
	"cdpharness/internal/handler"
	"cdpharness/internal/logger"
	"cdpharness/pkg/model"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/mafredri/cdp/rpcc"
)

const defaultProcessTimeout = 3 * time.Second

// Config 浏览器连接配置
type Config struct {
	DevToolsURL      string
	TargetID         string // 为空时新建独立的页面目标
	Concurrency      int    // 拦截事件并发处理数，<=0 表示每个事件一个 goroutine
	ProcessTimeoutMS int    // 单次 CDP 调用超时
	Logger           logger.Logger
}

// Manager 管理单个页面目标的 CDP 连接与拦截
type Manager struct {
	devtoolsURL    string
	targetID       string
	processTimeout time.Duration
	log            logger.Logger

	dt      *devtool.DevTools
	target  *devtool.Target
	created bool
	conn    *rpcc.Conn
	client  *cdp.Client
	ctx     context.Context
	cancel  context.CancelFunc
	pool    *workerPool

	mu      sync.Mutex
	handler *handler.Handler
	enabled bool
}

// New 创建连接管理器
func New(cfg Config) *Manager {
	l := cfg.Logger
	if l == nil {
		l = logger.NewNop()
	}
	to := time.Duration(cfg.ProcessTimeoutMS) * time.Millisecond
	if to <= 0 {
		to = defaultProcessTimeout
	}
	m := &Manager{
		devtoolsURL:    cfg.DevToolsURL,
		targetID:       cfg.TargetID,
		processTimeout: to,
		log:            l,
	}
	if cfg.Concurrency > 0 {
		m.pool = newWorkerPool(cfg.Concurrency)
	}
	return m
}

// Attach 附加到页面目标并启用 Page/Runtime/Network 域
func (m *Manager) Attach(ctx context.Context) error {
	m.dt = devtool.New(m.devtoolsURL)

	var sel *devtool.Target
	if m.targetID != "" {
		targets, err := m.dt.List(ctx)
		if err != nil {
			return fmt.Errorf("list targets: %w", err)
		}
		for i := range targets {
			if string(targets[i].ID) == m.targetID {
				sel = targets[i]
				break
			}
		}
		if sel == nil {
			return fmt.Errorf("no target %q", m.targetID)
		}
	} else {
		t, err := m.dt.Create(ctx)
		if err != nil {
			return fmt.Errorf("create target: %w", err)
		}
		sel = t
		m.created = true
	}
	m.target = sel

	conn, err := rpcc.DialContext(ctx, sel.WebSocketDebuggerURL)
	if err != nil {
		return fmt.Errorf("dial %s: %w", sel.WebSocketDebuggerURL, err)
	}
	m.conn = conn
	m.client = cdp.NewClient(conn)
	m.ctx, m.cancel = context.WithCancel(context.Background())

	if err := m.client.Page.Enable(ctx); err != nil {
		return fmt.Errorf("enable page: %w", err)
	}
	if err := m.client.Runtime.Enable(ctx); err != nil {
		return fmt.Errorf("enable runtime: %w", err)
	}
	if err := m.client.Network.Enable(ctx, nil); err != nil {
		return fmt.Errorf("enable network: %w", err)
	}
	m.log.Info("已附加页面目标", "target", string(sel.ID), "created", m.created)
	return nil
}

// TargetID 返回当前附加的目标
func (m *Manager) TargetID() model.TargetID {
	if m.target == nil {
		return ""
	}
	return model.TargetID(m.target.ID)
}

// Detach 断开连接，新建的目标会被关闭
func (m *Manager) Detach() error {
	if m.cancel != nil {
		m.cancel()
	}
	if m.pool != nil {
		m.pool.stop()
	}
	var err error
	if m.conn != nil {
		err = m.conn.Close()
	}
	if m.created && m.target != nil {
		ctx, cancel := context.WithTimeout(context.Background(), m.processTimeout)
		defer cancel()
		if cerr := m.dt.Close(ctx, m.target); cerr != nil {
			m.log.Warn("关闭页面目标失败", "target", string(m.target.ID), "error", cerr)
		}
	}
	m.log.Info("已断开页面目标")
	return err
}

// EnableInterception 启用 Fetch 拦截（请求与响应两个阶段）
func (m *Manager) EnableInterception(h *handler.Handler) error {
	if m.client == nil {
		return fmt.Errorf("not attached")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
	if m.enabled {
		return nil
	}

	p := "*"
	patterns := []fetch.RequestPattern{
		{URLPattern: &p, RequestStage: fetch.RequestStageRequest},
		{URLPattern: &p, RequestStage: fetch.RequestStageResponse},
	}
	if err := m.client.Fetch.Enable(m.ctx, &fetch.EnableArgs{Patterns: patterns}); err != nil {
		return fmt.Errorf("enable fetch: %w", err)
	}

	// 先订阅再返回，避免注册后立即触发的请求丢失
	rp, err := m.client.Fetch.RequestPaused(m.ctx)
	if err != nil {
		return fmt.Errorf("subscribe request paused: %w", err)
	}
	m.enabled = true
	go m.consume(rp)
	m.log.Info("已启用拦截", "target", string(m.TargetID()))
	return nil
}

// DisableInterception 停用拦截
func (m *Manager) DisableInterception() error {
	if m.client == nil {
		return fmt.Errorf("not attached")
	}
	m.mu.Lock()
	m.enabled = false
	m.mu.Unlock()
	return m.client.Fetch.Disable(m.ctx)
}

func (m *Manager) isEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// consume 持续接收拦截事件并按并发限制分发处理
func (m *Manager) consume(rp fetch.RequestPausedClient) {
	defer rp.Close()
	for {
		ev, err := rp.Recv()
		if err != nil {
			if m.isEnabled() && m.ctx.Err() == nil {
				m.log.Err(err, "接收拦截事件失败", "target", string(m.TargetID()))
			}
			return
		}
		m.dispatchPaused(ev)
	}
}

// dispatchPaused 根据并发配置调度单次拦截事件处理
func (m *Manager) dispatchPaused(ev *fetch.RequestPausedReply) {
	if m.pool == nil {
		go m.handle(ev)
		return
	}
	m.pool.submit(func() { m.handle(ev) })
}

// handle 按阶段把事件交给处理器
func (m *Manager) handle(ev *fetch.RequestPausedReply) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()

	req := cdpconv.ToNeutralRequest(ev)
	if h == nil {
		if err := m.ContinueRequest(m.ctx, req.ID); err != nil {
			m.log.Err(err, "放行请求失败", "url", req.URL)
		}
		return
	}

	switch {
	case ev.ResponseErrorReason != nil:
		reason := string(*ev.ResponseErrorReason)
		h.HandleLoadingFailed(req, reason)
		if err := m.Fail(m.ctx, req.ID, reason); err != nil {
			m.log.Err(err, "转发网络错误失败", "url", req.URL)
		}
	case ev.ResponseStatusCode != nil:
		h.HandleResponse(m.ctx, req, cdpconv.ToNeutralResponse(ev, nil))
	default:
		h.HandleRequest(m.ctx, req)
	}
}
