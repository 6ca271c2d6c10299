package traffic

import (
	"net/http"
	"strings"
	"time"
)

// Header 封装通用的头部操作
type Header map[string]string

// Get 获取指定 Header 的值（大小写不敏感）
func (h Header) Get(key string) string {
	if h == nil {
		return ""
	}
	return h[strings.ToLower(key)]
}

// Has 判断 Header 是否存在
func (h Header) Has(key string) bool {
	if h == nil {
		return false
	}
	_, ok := h[strings.ToLower(key)]
	return ok
}

// Set 设置指定 Header 的值（自动转换为小写）
func (h Header) Set(key, value string) {
	h[strings.ToLower(key)] = value
}

// Del 删除指定 Header
func (h Header) Del(key string) {
	delete(h, strings.ToLower(key))
}

// Clone 复制 Header
func (h Header) Clone() Header {
	out := make(Header, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Request 中立的请求模型，交给匹配器与处理函数的只读视图
type Request struct {
	ID           string            // 拦截ID
	URL          string            // 完整URL
	Path         string            // URL路径
	Host         string            // 主机（含端口）
	Scheme       string            // 协议
	Method       string            // HTTP方法
	Headers      Header            // 请求头
	Body         []byte            // 请求体原始数据
	ResourceType string            // 资源类型 (如 Document, XHR, Fetch)
	Query        map[string]string // 预解析的查询参数（同名取第一个）
	Cookies      map[string]string // 预解析的Cookie
}

// Response 中立的响应模型
type Response struct {
	StatusCode int           // 状态码
	Headers    Header        // 响应头
	Body       []byte        // 响应体数据
	Delay      time.Duration // 释放给页面前的延迟
}

// NewRequest 创建初始化请求对象
func NewRequest() *Request {
	return &Request{
		Headers: make(Header),
		Query:   make(map[string]string),
		Cookies: make(map[string]string),
	}
}

// NewResponse 创建初始化响应对象
func NewResponse() *Response {
	return &Response{
		StatusCode: http.StatusOK,
		Headers:    make(Header),
	}
}

// Clone 复制响应，注册后的响应不可被调用方修改
func (r *Response) Clone() *Response {
	out := &Response{
		StatusCode: r.StatusCode,
		Headers:    r.Headers.Clone(),
		Delay:      r.Delay,
	}
	if r.Body != nil {
		out.Body = append([]byte(nil), r.Body...)
	}
	return out
}
