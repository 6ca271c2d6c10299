package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"cdpharness/internal/logger"
	"cdpharness/pkg/model"
)

// Manager 全局会话管理器，会话之间不共享可变状态
type Manager struct {
	mu       sync.RWMutex
	sessions map[model.SessionID]*Session
	dial     DialFunc
	log      logger.Logger
}

// NewManager 创建会话管理器，dial 为空时使用 DialCDP
func NewManager(l logger.Logger, dial DialFunc) *Manager {
	if l == nil {
		l = logger.NewNop()
	}
	if dial == nil {
		dial = DialCDP
	}
	return &Manager{
		sessions: make(map[model.SessionID]*Session),
		dial:     dial,
		log:      l,
	}
}

// Create 建立浏览器连接、启用拦截并注册新会话
func (m *Manager) Create(ctx context.Context, cfg model.SessionConfig) (*Session, error) {
	id := model.SessionID(uuid.NewString())
	b, err := m.dial(ctx, cfg, m.log.With("session", string(id)))
	if err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	s := newSession(id, cfg, b, m.log)
	if err := b.EnableInterception(s.handler); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("enable interception: %w", err)
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	m.log.Info("创建测试会话", "sessionID", string(id), "target", string(s.Target()))
	return s, nil
}

// Get 获取会话
func (m *Manager) Get(id model.SessionID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete 关闭并移除会话
func (m *Manager) Delete(id model.SessionID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s not found", id)
	}
	m.log.Info("销毁测试会话", "sessionID", string(id))
	return s.Close()
}

// List 返回所有活动会话
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	return list
}

// CloseAll 关闭全部会话
func (m *Manager) CloseAll() error {
	var errs []error
	for _, s := range m.List() {
		if err := m.Delete(s.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
