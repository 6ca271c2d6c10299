package cdp

import (
	"encoding/json"
	"net/url"
	"sort"
	"strings"

	"cdpharness/pkg/model"
	"cdpharness/pkg/routespec"
	"cdpharness/pkg/traffic"

	"github.com/mafredri/cdp/protocol/fetch"
)

// ToNeutralRequest 将 CDP 拦截事件转换为中立 Request 模型
func ToNeutralRequest(ev *fetch.RequestPausedReply) *traffic.Request {
	req := traffic.NewRequest()
	req.ID = string(ev.RequestID)
	req.URL = ev.Request.URL
	req.Method = ev.Request.Method
	req.ResourceType = string(ev.ResourceType)

	// 处理 Header
	var headers map[string]string
	if len(ev.Request.Headers) > 0 {
		if err := json.Unmarshal(ev.Request.Headers, &headers); err == nil {
			for k, v := range headers {
				req.Headers.Set(k, v)
			}
		}
	}

	// 解析 URL 与 Query 参数
	if u, err := url.Parse(req.URL); err == nil {
		req.Scheme = strings.ToLower(u.Scheme)
		req.Host = strings.ToLower(u.Host)
		req.Path = u.Path
		if req.Path == "" {
			req.Path = "/"
		}
		for key, vals := range u.Query() {
			if len(vals) > 0 {
				req.Query[key] = vals[0]
			}
		}
	}

	// 解析 Cookie
	if cookieHeader := req.Headers.Get("cookie"); cookieHeader != "" {
		for _, pair := range strings.Split(cookieHeader, ";") {
			pair = strings.TrimSpace(pair)
			if kv := strings.SplitN(pair, "=", 2); len(kv) == 2 {
				req.Cookies[kv[0]] = kv[1]
			}
		}
	}

	if ev.Request.PostData != nil {
		req.Body = []byte(*ev.Request.PostData)
	}
	return req
}

// ToNeutralResponse 将响应阶段的 CDP 事件转换为中立 Response 模型
func ToNeutralResponse(ev *fetch.RequestPausedReply, body []byte) *traffic.Response {
	res := traffic.NewResponse()
	if ev.ResponseStatusCode != nil {
		res.StatusCode = *ev.ResponseStatusCode
	}
	for _, h := range ev.ResponseHeaders {
		res.Headers.Set(h.Name, h.Value)
	}
	res.Body = body
	return res
}

// ToHeaderEntries 将中立 Header 转换为 CDP Header 条目（按名称排序，保证输出稳定）
func ToHeaderEntries(h traffic.Header) []fetch.HeaderEntry {
	entries := make([]fetch.HeaderEntry, 0, len(h))
	for k, v := range h {
		entries = append(entries, fetch.HeaderEntry{Name: k, Value: v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// ToFulfillArgs 构造 Fetch.fulfillRequest 参数
func ToFulfillArgs(id fetch.RequestID, res *traffic.Response) *fetch.FulfillRequestArgs {
	args := &fetch.FulfillRequestArgs{RequestID: id, ResponseCode: res.StatusCode}
	if len(res.Headers) > 0 {
		args.ResponseHeaders = ToHeaderEntries(res.Headers)
	}
	phrase := routespec.StatusText(res.StatusCode)
	args.ResponsePhrase = &phrase
	if len(res.Body) > 0 {
		args.Body = res.Body
	}
	return args
}

// ToRequestInfo 转换为可记录的请求快照
func ToRequestInfo(req *traffic.Request) model.RequestInfo {
	info := model.RequestInfo{
		URL:          req.URL,
		Method:       req.Method,
		Headers:      make(map[string]string, len(req.Headers)),
		Query:        make(map[string]string, len(req.Query)),
		Body:         string(req.Body),
		ResourceType: req.ResourceType,
	}
	for k, v := range req.Headers {
		info.Headers[k] = v
	}
	for k, v := range req.Query {
		info.Query[k] = v
	}
	return info
}

// ToResponseInfo 转换为可记录的响应快照
func ToResponseInfo(res *traffic.Response) model.ResponseInfo {
	if res == nil {
		return model.ResponseInfo{}
	}
	info := model.ResponseInfo{
		StatusCode: res.StatusCode,
		Headers:    make(map[string]string, len(res.Headers)),
		Body:       string(res.Body),
	}
	for k, v := range res.Headers {
		info.Headers[k] = v
	}
	return info
}
