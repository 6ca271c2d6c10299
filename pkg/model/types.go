package model

import "time"

type SessionID string
type TargetID string
type RouteID string

// SessionConfig 单个测试会话的配置
type SessionConfig struct {
	DevToolsURL      string `json:"devToolsURL"`
	BaseURL          string `json:"baseURL"`
	TargetID         string `json:"targetID"`
	BlockUnmatched   bool   `json:"blockUnmatched"`
	Concurrency      int    `json:"concurrency"`
	ProcessTimeoutMS int    `json:"processTimeoutMS"`
	DefaultTimeoutMS int    `json:"defaultTimeoutMS"`
	PollIntervalMS   int    `json:"pollIntervalMS"`
	RouteTimeoutMS   int    `json:"routeTimeoutMS"`
}

// EngineStats 路由匹配统计
type EngineStats struct {
	Total   int64             `json:"total"`
	Matched int64             `json:"matched"`
	ByRoute map[RouteID]int64 `json:"byRoute"`
}

// 事件类型
const (
	EventMatched   = "matched"
	EventFulfilled = "fulfilled"
	EventPassed    = "passed"
	EventCompleted = "completed"
	EventBlocked   = "blocked"
	EventFailed    = "failed"
	EventUnmatched = "unmatched"
)

// Event 拦截过程中产生的事件
type Event struct {
	Type       string    `json:"type"`
	Session    SessionID `json:"session"`
	Target     TargetID  `json:"target"`
	Route      *RouteID  `json:"route"`
	Alias      string    `json:"alias"`
	URL        string    `json:"url"`
	Method     string    `json:"method"`
	Stage      string    `json:"stage"`
	StatusCode int       `json:"statusCode"`
	Error      string    `json:"error"`
	Timestamp  int64     `json:"timestamp"`
}

// RequestInfo 被拦截请求的只读快照
type RequestInfo struct {
	URL          string            `json:"url"`
	Method       string            `json:"method"`
	Headers      map[string]string `json:"headers"`
	Query        map[string]string `json:"query"`
	Body         string            `json:"body"`
	ResourceType string            `json:"resourceType"`
}

// ResponseInfo 实际返回给页面的响应
type ResponseInfo struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

// Interception 一次完成的拦截，由 awaitRoute 返回
type Interception struct {
	Route       RouteID      `json:"route"`
	Alias       string       `json:"alias"`
	Request     RequestInfo  `json:"request"`
	Response    ResponseInfo `json:"response"`
	Result      string       `json:"result"`
	MatchedAt   time.Time    `json:"matchedAt"`
	CompletedAt time.Time    `json:"completedAt"`
	Err         error        `json:"-"`
}

// Duration 从匹配到完成的耗时
func (i *Interception) Duration() time.Duration {
	return i.CompletedAt.Sub(i.MatchedAt)
}

type TargetInfo struct {
	ID    TargetID `json:"id"`
	Type  string   `json:"type"`
	URL   string   `json:"url"`
	Title string   `json:"title"`
}
