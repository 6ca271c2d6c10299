package session

import (
	"context"
	"sync"
	"time"

	"cdpharness/internal/cdp"
	"cdpharness/internal/driver"
	"cdpharness/internal/handler"
	"cdpharness/internal/logger"
	"cdpharness/internal/route"
	"cdpharness/pkg/model"
)

const eventBuffer = 256

// Browser 会话独占的浏览器页面：既是驱动的页面，也是拦截动作的执行者
type Browser interface {
	driver.Page
	handler.Executor
	EnableInterception(h *handler.Handler) error
	TargetID() model.TargetID
	Detach() error
}

// DialFunc 为新会话建立浏览器连接
type DialFunc func(ctx context.Context, cfg model.SessionConfig, l logger.Logger) (Browser, error)

// DialCDP 通过 DevTools 协议新建或附加页面目标
func DialCDP(ctx context.Context, cfg model.SessionConfig, l logger.Logger) (Browser, error) {
	m := cdp.New(cdp.Config{
		DevToolsURL:      cfg.DevToolsURL,
		TargetID:         cfg.TargetID,
		Concurrency:      cfg.Concurrency,
		ProcessTimeoutMS: cfg.ProcessTimeoutMS,
		Logger:           l,
	})
	if err := m.Attach(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Session 一个测试用例独占的会话：页面、路由表、拦截处理器与事件流
type Session struct {
	ID     model.SessionID
	Config model.SessionConfig
	Driver *driver.Session

	table   *route.Table
	handler *handler.Handler
	browser Browser
	events  chan model.Event
	log     logger.Logger

	mu     sync.Mutex
	subs   []chan model.Event
	closed bool
	done   chan struct{}
}

func newSession(id model.SessionID, cfg model.SessionConfig, b Browser, l logger.Logger) *Session {
	l = l.With("session", string(id))
	table := route.NewTable(l)
	events := make(chan model.Event, eventBuffer)
	h := handler.New(handler.Config{
		Table:          table,
		Executor:       b,
		Events:         events,
		BlockUnmatched: cfg.BlockUnmatched,
		Session:        id,
		Target:         b.TargetID(),
		Logger:         l,
	})
	s := &Session{
		ID:      id,
		Config:  cfg,
		table:   table,
		handler: h,
		browser: b,
		events:  events,
		log:     l,
		done:    make(chan struct{}),
	}
	s.Driver = driver.NewSession(id, b, table, h, driver.Options{
		BaseURL:      cfg.BaseURL,
		Timeout:      time.Duration(cfg.DefaultTimeoutMS) * time.Millisecond,
		Interval:     time.Duration(cfg.PollIntervalMS) * time.Millisecond,
		RouteTimeout: time.Duration(cfg.RouteTimeoutMS) * time.Millisecond,
		Logger:       l,
	})
	go s.broadcast()
	return s
}

// Target 返回会话附加的页面目标
func (s *Session) Target() model.TargetID { return s.browser.TargetID() }

// Subscribe 订阅会话事件；订阅者消费过慢时事件会被丢弃
func (s *Session) Subscribe() <-chan model.Event {
	ch := make(chan model.Event, eventBuffer)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch
	}
	s.subs = append(s.subs, ch)
	return ch
}

func (s *Session) broadcast() {
	for {
		select {
		case evt := <-s.events:
			s.mu.Lock()
			for _, ch := range s.subs {
				select {
				case ch <- evt:
				default:
				}
			}
			s.mu.Unlock()
		case <-s.done:
			return
		}
	}
}

// Close 拆除路由、断开页面并关闭所有订阅；返回测试期间的处理函数错误
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	// 先断开页面，进行中的处理函数结束后再收集错误
	if derr := s.browser.Detach(); derr != nil {
		s.log.Warn("断开页面失败", "error", derr)
	}
	err := s.Driver.Teardown()
	close(s.done)

	s.mu.Lock()
	for _, ch := range s.subs {
		close(ch)
	}
	s.subs = nil
	s.mu.Unlock()
	return err
}
