package route

import (
	"context"
	"errors"
	"sync"
	"time"

	"cdpharness/pkg/model"
	"cdpharness/pkg/routespec"
)

// ErrRouteClosed 路由已在测试结束时被移除
var ErrRouteClosed = errors.New("route was torn down")

// Route 已注册的路由，同时作为 awaitRoute 的令牌
type Route struct {
	id   model.RouteID
	rule *routespec.Compiled

	mu          sync.Mutex
	matched     int64
	closed      bool
	completions []*model.Interception
	history     []*model.Interception
	notify      chan struct{}
}

func newRoute(id model.RouteID, rule *routespec.Compiled) *Route {
	return &Route{id: id, rule: rule, notify: make(chan struct{})}
}

// ID 返回路由令牌
func (r *Route) ID() model.RouteID { return r.id }

// Alias 返回路由别名
func (r *Route) Alias() string { return r.rule.Alias }

// Rule 返回编译后的规则
func (r *Route) Rule() *routespec.Compiled { return r.rule }

// Matched 返回已命中的次数
func (r *Route) Matched() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.matched
}

// Exhausted 判断是否已达到最大匹配次数
func (r *Route) Exhausted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exhaustedLocked()
}

func (r *Route) exhaustedLocked() bool {
	return r.rule.Times > 0 && r.matched >= int64(r.rule.Times)
}

// claim 在未关闭且未耗尽时记录一次命中
func (r *Route) claim() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.exhaustedLocked() {
		return false
	}
	r.matched++
	return true
}

// Complete 记录一次已完成的拦截并唤醒等待者
func (r *Route) Complete(in *model.Interception) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in.Route = r.id
	in.Alias = r.rule.Alias
	r.history = append(r.history, in)
	if r.closed {
		return
	}
	r.completions = append(r.completions, in)
	close(r.notify)
	r.notify = make(chan struct{})
}

// History 返回该路由完成的全部拦截
func (r *Route) History() []*model.Interception {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.Interception(nil), r.history...)
}

// Await 等待下一个尚未被等待过的完成拦截；超时返回 RouteTimeoutError
func (r *Route) Await(ctx context.Context, timeout time.Duration) (*model.Interception, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		r.mu.Lock()
		if len(r.completions) > 0 {
			in := r.completions[0]
			r.completions = r.completions[1:]
			r.mu.Unlock()
			if in.Err != nil {
				return in, in.Err
			}
			return in, nil
		}
		if r.closed {
			r.mu.Unlock()
			return nil, ErrRouteClosed
		}
		ch := r.notify
		matched := r.matched
		r.mu.Unlock()

		select {
		case <-ch:
		case <-deadline.C:
			return nil, &model.RouteTimeoutError{Route: r.id, Alias: r.rule.Alias, Timeout: timeout, Matched: matched}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// close 移除路由并唤醒所有等待者
func (r *Route) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.completions = nil
	close(r.notify)
}
