package routespec

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cdpharness/pkg/model"
	"cdpharness/pkg/traffic"
)

// HandlerFunc 动态处理函数：可检查请求并调用 Reply，不回复则放行到真实网络
type HandlerFunc func(req *Intercepted) error

// ResponseSpec 静态响应描述
type ResponseSpec struct {
	StatusCode int
	Body       any
	Headers    map[string]string
	Delay      time.Duration
}

// Rule 路由规则
type Rule struct {
	Method     string        // 为空或 * 时匹配任意方法
	URLPattern string        // 路径、带查询参数的路径或完整 URL
	Response   *ResponseSpec // 静态响应
	Handler    HandlerFunc   // 动态处理，与 Response 互斥
	Times      int           // 最多匹配次数，0 表示不限
	Alias      string        // 便于日志与错误信息识别的别名
}

// Compiled 校验通过的规则，注册后不再变化
type Compiled struct {
	Method   string
	Pattern  *Pattern
	Response *traffic.Response
	Handler  HandlerFunc
	Times    int
	Alias    string
}

// Kind 返回规则类型：stub、handler 或 spy
func (c *Compiled) Kind() string {
	switch {
	case c.Response != nil:
		return "stub"
	case c.Handler != nil:
		return "handler"
	default:
		return "spy"
	}
}

// MatchMethod 判断请求方法是否匹配
func (c *Compiled) MatchMethod(method string) bool {
	return c.Method == "" || strings.EqualFold(c.Method, method)
}

// Match 判断请求是否命中规则
func (c *Compiled) Match(req *traffic.Request) bool {
	return c.MatchMethod(req.Method) && c.Pattern.Match(req)
}

// Compile 校验规则并编码静态响应
func (r Rule) Compile() (*Compiled, error) {
	p, err := ParsePattern(r.URLPattern)
	if err != nil {
		return nil, err
	}
	if r.Response != nil && r.Handler != nil {
		return nil, &model.ConfigurationError{Pattern: r.URLPattern, Reason: "response and handler are mutually exclusive"}
	}
	if r.Times < 0 {
		return nil, &model.ConfigurationError{Pattern: r.URLPattern, Reason: fmt.Sprintf("negative times %d", r.Times)}
	}
	method := strings.ToUpper(strings.TrimSpace(r.Method))
	if method == "*" {
		method = ""
	}
	c := &Compiled{
		Method:  method,
		Pattern: p,
		Handler: r.Handler,
		Times:   r.Times,
		Alias:   r.Alias,
	}
	if r.Response != nil {
		res, err := r.Response.Build()
		if err != nil {
			return nil, &model.ConfigurationError{Pattern: r.URLPattern, Reason: "invalid response", Err: err}
		}
		c.Response = res
	}
	return c, nil
}

// Build 将响应描述编码为中立响应
func (s ResponseSpec) Build() (*traffic.Response, error) {
	res := traffic.NewResponse()
	if s.StatusCode != 0 {
		res.StatusCode = s.StatusCode
	}
	if res.StatusCode < 100 || res.StatusCode > 599 {
		return nil, fmt.Errorf("status code %d out of range", res.StatusCode)
	}
	if s.Delay < 0 {
		return nil, fmt.Errorf("negative delay %s", s.Delay)
	}
	res.Delay = s.Delay
	for k, v := range s.Headers {
		res.Headers.Set(k, v)
	}

	switch b := s.Body.(type) {
	case nil:
	case []byte:
		res.Body = append([]byte(nil), b...)
	case json.RawMessage:
		res.Body = append([]byte(nil), b...)
		setDefaultContentType(res.Headers)
	case string:
		res.Body = []byte(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		res.Body = data
		setDefaultContentType(res.Headers)
	}
	return res, nil
}

func setDefaultContentType(h traffic.Header) {
	if !h.Has("content-type") {
		h.Set("content-type", "application/json")
	}
}

// StatusText 返回状态码对应的短语
func StatusText(code int) string {
	if t := http.StatusText(code); t != "" {
		return t
	}
	return "Unknown"
}
