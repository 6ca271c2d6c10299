package route

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"cdpharness/internal/logger"
	"cdpharness/pkg/model"
	"cdpharness/pkg/routespec"
	"cdpharness/pkg/traffic"
)

// Table 单个会话的路由表
type Table struct {
	mu      sync.RWMutex
	routes  []*Route
	total   atomic.Int64
	matched atomic.Int64
	log     logger.Logger
}

// NewTable 创建路由表
func NewTable(l logger.Logger) *Table {
	if l == nil {
		l = logger.NewNop()
	}
	return &Table{log: l}
}

// Register 校验并注册路由，返回的 Route 即路由令牌
func (t *Table) Register(rule routespec.Rule) (*Route, error) {
	compiled, err := rule.Compile()
	if err != nil {
		t.log.Warn("路由规则非法", "pattern", rule.URLPattern, "error", err)
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	r := newRoute(model.RouteID(uuid.NewString()), compiled)
	t.routes = append(t.routes, r)
	t.log.Debug("注册路由", "route", string(r.id), "alias", compiled.Alias, "method", compiled.Method,
		"pattern", compiled.Pattern.String(), "kind", compiled.Kind(), "times", compiled.Times)
	return r, nil
}

// Match 返回最后注册且仍可用的匹配路由，并记录一次命中
func (t *Table) Match(req *traffic.Request) *Route {
	t.total.Add(1)
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := len(t.routes) - 1; i >= 0; i-- {
		r := t.routes[i]
		if !r.rule.Match(req) {
			continue
		}
		if r.claim() {
			t.matched.Add(1)
			return r
		}
	}
	return nil
}

// Get 按令牌查找路由
func (t *Table) Get(id model.RouteID) (*Route, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, r := range t.routes {
		if r.id == id {
			return r, true
		}
	}
	return nil, false
}

// Remove 移除单条路由
func (t *Table) Remove(id model.RouteID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, r := range t.routes {
		if r.id == id {
			r.close()
			t.routes = append(t.routes[:i], t.routes[i+1:]...)
			return true
		}
	}
	return false
}

// Reset 拆除全部路由，测试结束时调用
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.routes {
		r.close()
	}
	if n := len(t.routes); n > 0 {
		t.log.Debug("拆除全部路由", "count", n)
	}
	t.routes = nil
}

// Routes 返回当前注册的路由（按注册顺序）
func (t *Table) Routes() []*Route {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*Route(nil), t.routes...)
}

// Stats 返回匹配统计
func (t *Table) Stats() model.EngineStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st := model.EngineStats{
		Total:   t.total.Load(),
		Matched: t.matched.Load(),
		ByRoute: make(map[model.RouteID]int64, len(t.routes)),
	}
	for _, r := range t.routes {
		st.ByRoute[r.id] = r.Matched()
	}
	return st
}
