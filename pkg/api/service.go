package api

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cdpharness/internal/cdp"
	"cdpharness/internal/config"
	"cdpharness/internal/driver"
	"cdpharness/internal/logger"
	"cdpharness/internal/session"
	"cdpharness/internal/storage"
	"cdpharness/pkg/model"
)

// Service 服务接口
type Service interface {
	// StartSession 启动会话：连接页面并启用拦截
	StartSession(ctx context.Context, cfg model.SessionConfig) (model.SessionID, error)

	// StopSession 停止会话，返回测试期间处理函数产生的错误
	StopSession(id model.SessionID) error

	// Session 返回会话的驱动
	Session(id model.SessionID) (*driver.Session, error)

	// ListSessions 列出活动会话
	ListSessions() []model.SessionID

	// ListTargets 列出浏览器中的页面目标
	ListTargets(ctx context.Context, devtoolsURL string) ([]model.TargetInfo, error)

	// GetRouteStats 获取路由匹配统计
	GetRouteStats(id model.SessionID) (model.EngineStats, error)

	// SubscribeEvents 订阅事件
	SubscribeEvents(id model.SessionID) (<-chan model.Event, error)

	// EventSummary 从事件日志库统计会话事件，未启用日志库时返回错误
	EventSummary(ctx context.Context, id model.SessionID) (map[string]int64, error)

	// Close 关闭全部会话与日志库
	Close() error
}

// ErrJournalDisabled 未启用事件日志库
var ErrJournalDisabled = errors.New("event journal is disabled")

// Option 服务选项
type Option func(*service)

// WithDialer 替换浏览器连接方式
func WithDialer(dial session.DialFunc) Option {
	return func(s *service) { s.dial = dial }
}

type service struct {
	cfg     *config.Config
	log     logger.Logger
	dial    session.DialFunc
	mgr     *session.Manager
	journal *storage.Journal

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService 创建并返回服务接口实现；配置启用 sqlite 时同时打开事件日志库
func NewService(l logger.Logger, cfg *config.Config, opts ...Option) (Service, error) {
	if l == nil {
		l = logger.NewNop()
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}
	s := &service{cfg: cfg, log: l}
	for _, opt := range opts {
		opt(s)
	}
	s.mgr = session.NewManager(l, s.dial)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if cfg.Sqlite.Enabled {
		j, err := storage.Open(storage.Options{DSN: cfg.Sqlite.Dsn, Prefix: cfg.Sqlite.Prefix, Logger: l})
		if err != nil {
			return nil, err
		}
		s.journal = j
	}
	return s, nil
}

func (s *service) StartSession(ctx context.Context, cfg model.SessionConfig) (model.SessionID, error) {
	sess, err := s.mgr.Create(ctx, cfg)
	if err != nil {
		return "", err
	}
	if s.journal != nil {
		events := sess.Subscribe()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.journal.Run(s.ctx, events)
		}()
	}
	return sess.ID, nil
}

func (s *service) StopSession(id model.SessionID) error {
	return s.mgr.Delete(id)
}

func (s *service) get(id model.SessionID) (*session.Session, error) {
	sess, ok := s.mgr.Get(id)
	if !ok {
		return nil, fmt.Errorf("session %s not found", id)
	}
	return sess, nil
}

func (s *service) Session(id model.SessionID) (*driver.Session, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return sess.Driver, nil
}

func (s *service) ListSessions() []model.SessionID {
	list := s.mgr.List()
	ids := make([]model.SessionID, 0, len(list))
	for _, sess := range list {
		ids = append(ids, sess.ID)
	}
	return ids
}

func (s *service) ListTargets(ctx context.Context, devtoolsURL string) ([]model.TargetInfo, error) {
	if devtoolsURL == "" {
		devtoolsURL = s.cfg.Browser.DevToolsURL
	}
	return cdp.ListTargets(ctx, devtoolsURL)
}

func (s *service) GetRouteStats(id model.SessionID) (model.EngineStats, error) {
	sess, err := s.get(id)
	if err != nil {
		return model.EngineStats{}, err
	}
	return sess.Driver.Stats(), nil
}

func (s *service) SubscribeEvents(id model.SessionID) (<-chan model.Event, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return sess.Subscribe(), nil
}

func (s *service) EventSummary(ctx context.Context, id model.SessionID) (map[string]int64, error) {
	if s.journal == nil {
		return nil, ErrJournalDisabled
	}
	return s.journal.Summary(ctx, id)
}

func (s *service) Close() error {
	err := s.mgr.CloseAll()
	// 会话关闭后订阅通道随之关闭，写入协程自行退出
	s.wg.Wait()
	s.cancel()
	if s.journal != nil {
		if jerr := s.journal.Close(); jerr != nil {
			err = errors.Join(err, jerr)
		}
	}
	return err
}
