package cdp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mafredri/cdp/protocol/input"
	"github.com/mafredri/cdp/protocol/page"
	"github.com/mafredri/cdp/protocol/runtime"
)

// Navigate 导航到 URL 并等待 load 事件
func (m *Manager) Navigate(ctx context.Context, url string) error {
	if m.client == nil {
		return fmt.Errorf("not attached")
	}
	loaded, err := m.client.Page.LoadEventFired(ctx)
	if err != nil {
		return err
	}
	defer loaded.Close()

	reply, err := m.client.Page.Navigate(ctx, page.NewNavigateArgs(url))
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if reply.ErrorText != nil && *reply.ErrorText != "" {
		return fmt.Errorf("navigate %s: %s", url, *reply.ErrorText)
	}
	if _, err := loaded.Recv(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	m.log.Debug("页面已加载", "url", url)
	return nil
}

// Reload 重新加载页面并等待 load 事件
func (m *Manager) Reload(ctx context.Context) error {
	if m.client == nil {
		return fmt.Errorf("not attached")
	}
	loaded, err := m.client.Page.LoadEventFired(ctx)
	if err != nil {
		return err
	}
	defer loaded.Close()

	if err := m.client.Page.Reload(ctx, page.NewReloadArgs()); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	if _, err := loaded.Recv(); err != nil {
		return fmt.Errorf("wait load: %w", err)
	}
	return nil
}

// Evaluate 在页面中执行表达式，按值返回 JSON 结果
func (m *Manager) Evaluate(ctx context.Context, expr string) (json.RawMessage, error) {
	if m.client == nil {
		return nil, fmt.Errorf("not attached")
	}
	args := runtime.NewEvaluateArgs(expr).SetReturnByValue(true).SetAwaitPromise(true)
	reply, err := m.client.Runtime.Evaluate(ctx, args)
	if err != nil {
		return nil, err
	}
	if reply.ExceptionDetails != nil {
		return nil, fmt.Errorf("evaluate: %s", reply.ExceptionDetails.Text)
	}
	return reply.Result.Value, nil
}

// DispatchClick 在页面坐标处派发原生鼠标点击
func (m *Manager) DispatchClick(ctx context.Context, x, y float64) error {
	if m.client == nil {
		return fmt.Errorf("not attached")
	}
	moved := input.NewDispatchMouseEventArgs("mouseMoved", x, y)
	if err := m.client.Input.DispatchMouseEvent(ctx, moved); err != nil {
		return fmt.Errorf("mouse move: %w", err)
	}
	for _, typ := range []string{"mousePressed", "mouseReleased"} {
		args := input.NewDispatchMouseEventArgs(typ, x, y).
			SetButton(input.MouseButtonLeft).
			SetClickCount(1)
		if err := m.client.Input.DispatchMouseEvent(ctx, args); err != nil {
			return fmt.Errorf("%s: %w", typ, err)
		}
	}
	return nil
}
