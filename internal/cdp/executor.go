package cdp

import (
	"context"
	"encoding/base64"
	"fmt"

	cdpconv "cdpharness/internal/adapter/cdp"
	"cdpharness/pkg/traffic"

	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/mafredri/cdp/protocol/network"
)

// callCtx 为单次 CDP 调用附加超时
func (m *Manager) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.processTimeout)
}

// ContinueRequest 放行请求
func (m *Manager) ContinueRequest(ctx context.Context, requestID string) error {
	cctx, cancel := m.callCtx(ctx)
	defer cancel()
	return m.client.Fetch.ContinueRequest(cctx, &fetch.ContinueRequestArgs{RequestID: fetch.RequestID(requestID)})
}

// ContinueResponse 放行响应
func (m *Manager) ContinueResponse(ctx context.Context, requestID string) error {
	cctx, cancel := m.callCtx(ctx)
	defer cancel()
	return m.client.Fetch.ContinueResponse(cctx, &fetch.ContinueResponseArgs{RequestID: fetch.RequestID(requestID)})
}

// Fulfill 以合成响应回复请求
func (m *Manager) Fulfill(ctx context.Context, requestID string, res *traffic.Response) error {
	cctx, cancel := m.callCtx(ctx)
	defer cancel()
	return m.client.Fetch.FulfillRequest(cctx, cdpconv.ToFulfillArgs(fetch.RequestID(requestID), res))
}

// Fail 以网络错误结束请求
func (m *Manager) Fail(ctx context.Context, requestID string, reason string) error {
	cctx, cancel := m.callCtx(ctx)
	defer cancel()
	return m.client.Fetch.FailRequest(cctx, &fetch.FailRequestArgs{
		RequestID:   fetch.RequestID(requestID),
		ErrorReason: network.ErrorReason(reason),
	})
}

// ResponseBody 读取响应阶段的响应体
func (m *Manager) ResponseBody(ctx context.Context, requestID string) ([]byte, error) {
	cctx, cancel := m.callCtx(ctx)
	defer cancel()
	reply, err := m.client.Fetch.GetResponseBody(cctx, &fetch.GetResponseBodyArgs{RequestID: fetch.RequestID(requestID)})
	if err != nil {
		return nil, err
	}
	if reply.Base64Encoded {
		b, err := base64.StdEncoding.DecodeString(reply.Body)
		if err != nil {
			return nil, fmt.Errorf("decode body: %w", err)
		}
		return b, nil
	}
	return []byte(reply.Body), nil
}
