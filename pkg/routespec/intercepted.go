package routespec

import (
	"errors"

	"cdpharness/pkg/traffic"
)

var errAlreadyReplied = errors.New("request already replied")

// Intercepted 交给 HandlerFunc 的请求视图
type Intercepted struct {
	*traffic.Request
	reply *traffic.Response
	err   error
}

// NewIntercepted 包装中立请求
func NewIntercepted(req *traffic.Request) *Intercepted {
	return &Intercepted{Request: req}
}

// Reply 以给定响应回复请求，每个请求只能回复一次
func (r *Intercepted) Reply(spec ResponseSpec) error {
	if r.reply != nil {
		r.err = errAlreadyReplied
		return r.err
	}
	res, err := spec.Build()
	if err != nil {
		r.err = err
		return err
	}
	r.reply = res
	return nil
}

// Response 返回处理函数给出的响应，nil 表示放行
func (r *Intercepted) Response() *traffic.Response { return r.reply }

// Err 返回 Reply 过程中发生的错误
func (r *Intercepted) Err() error { return r.err }
