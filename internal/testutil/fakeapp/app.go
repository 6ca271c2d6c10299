// Package fakeapp 提供一个内存中的 Dog Image Browser 替身。
// 它同时实现 driver.Page 与 handler.Executor：页面发出的请求先交给拦截处理器，
// 未被合成响应的请求再由模拟的上游 API 回答。仅用于测试。
package fakeapp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/tidwall/gjson"

	"cdpharness/internal/dogapp"
	"cdpharness/internal/handler"
	"cdpharness/pkg/model"
	"cdpharness/pkg/traffic"
)

// RequestHandler 拦截处理器的最小接口
type RequestHandler interface {
	HandleRequest(ctx context.Context, req *traffic.Request)
	HandleResponse(ctx context.Context, req *traffic.Request, res *traffic.Response)
}

// Upstream 模拟真实网络，返回状态码与响应体
type Upstream func(req *traffic.Request) (int, []byte)

type element struct {
	order    int
	tag      string
	text     string
	attrs    map[string]string
	disabled bool
	hidden   bool
	value    string
	options  [][2]string
}

type flight struct {
	req    *traffic.Request
	done   func(status int, body []byte)
	status int
	body   []byte
}

// App 内存中的页面
type App struct {
	BaseURL  string
	Upstream Upstream

	mu        sync.Mutex
	h         RequestHandler
	els       map[string]*element
	order     int
	seq       int
	inflight  map[string]*flight
	network   []string
	navigated []string
	wg        sync.WaitGroup
}

// New 创建页面替身，默认使用 DefaultUpstream
func New(baseURL string) *App {
	return &App{
		BaseURL:  strings.TrimSuffix(baseURL, "/"),
		Upstream: DefaultUpstream,
		els:      map[string]*element{},
		inflight: map[string]*flight{},
	}
}

// SetHandler 绑定拦截处理器
func (a *App) SetHandler(h RequestHandler) {
	a.mu.Lock()
	a.h = h
	a.mu.Unlock()
}

// EnableInterception 绑定会话的拦截处理器
func (a *App) EnableInterception(h *handler.Handler) error {
	a.SetHandler(h)
	return nil
}

// TargetID 固定的页面目标标识
func (a *App) TargetID() model.TargetID { return "fake-page" }

// Detach 等待进行中的请求结束
func (a *App) Detach() error {
	a.Idle()
	return nil
}

// NetworkHits 返回到达模拟上游的请求 URL
func (a *App) NetworkHits() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.network...)
}

// Navigations 返回导航历史
func (a *App) Navigations() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.navigated...)
}

// Idle 等待所有进行中的请求处理结束
func (a *App) Idle() { a.wg.Wait() }

// DefaultUpstream 模拟 Dog CEO 代理接口
func DefaultUpstream(req *traffic.Request) (int, []byte) {
	switch req.Path {
	case dogapp.BreedsPath:
		return 200, dogapp.BreedsBody(map[string][]string{
			"akita":  nil,
			"beagle": nil,
			"husky":  nil,
			"hound":  {"afghan", "basset"},
		})
	case dogapp.DogsPath:
		breed := req.Query[dogapp.BreedParam]
		if breed == "" {
			breed = "hound-afghan"
		}
		return 200, dogapp.DogBody(dogapp.ImageURL(breed, fmt.Sprintf("n0%d.jpg", len(breed))))
	}
	return 404, dogapp.ErrorBody("not found")
}

// Navigate 重置页面并开始加载品种列表
func (a *App) Navigate(ctx context.Context, rawURL string) error {
	a.mu.Lock()
	a.navigated = append(a.navigated, rawURL)
	a.reset()
	a.mu.Unlock()
	a.fetch(ctx, a.BaseURL+dogapp.BreedsPath, a.onBreeds)
	return nil
}

// Reload 等同于重新导航到最后一个地址
func (a *App) Reload(ctx context.Context) error {
	a.mu.Lock()
	last := a.BaseURL + "/"
	if n := len(a.navigated); n > 0 {
		last = a.navigated[n-1]
	}
	a.mu.Unlock()
	return a.Navigate(ctx, last)
}

func (a *App) reset() {
	a.els = map[string]*element{}
	a.order = 0
	a.add(dogapp.TestIDPageTitle, "h1", dogapp.TitleText)
	a.add(dogapp.TestIDPageSubtitle, "p", dogapp.SubtitleText)
	sel := a.add(dogapp.TestIDBreedSelector, "select", "")
	sel.options = [][2]string{{"", dogapp.AllBreedsLabel}}
	a.add(dogapp.TestIDFetchButton, "button", dogapp.FetchButtonText)
	a.add(dogapp.TestIDPlaceholder, "p", dogapp.PlaceholderText)
}

func (a *App) add(id, tag, text string) *element {
	a.order++
	el := &element{order: a.order, tag: tag, text: text, attrs: map[string]string{"data-testid": id}}
	a.els[id] = el
	return el
}

// 每个元素占据一行，按加入顺序排列
func center(el *element) (float64, float64) {
	return 60, float64(el.order*30 + 10)
}

// Evaluate 识别驱动发出的脚本并在内存 DOM 上执行
func (a *App) Evaluate(_ context.Context, expr string) (json.RawMessage, error) {
	name, args := parseScript(expr)
	a.mu.Lock()
	defer a.mu.Unlock()
	el := a.els[args.Get("id").String()]
	switch name {
	case "snapshot":
		if el == nil {
			return json.RawMessage(`{"exists":false}`), nil
		}
		return a.snapshot(el), nil
	case "scroll":
		return json.Marshal(el != nil)
	case "select":
		if el == nil {
			return json.RawMessage(`{"ok":false,"reason":"element not found"}`), nil
		}
		want := args.Get("value").String()
		for _, o := range el.options {
			if o[0] == want || strings.TrimSpace(o[1]) == want {
				el.value = o[0]
				return json.Marshal(map[string]any{"ok": true, "value": o[0]})
			}
		}
		return json.Marshal(map[string]any{"ok": false, "reason": "no option " + want})
	}
	return nil, fmt.Errorf("unsupported script %q", name)
}

func (a *App) snapshot(el *element) json.RawMessage {
	x, y := center(el)
	w, h := 120.0, 24.0
	if el.hidden {
		w, h = 0, 0
	}
	opts := make([]map[string]any, 0, len(el.options))
	for _, o := range el.options {
		opts = append(opts, map[string]any{"value": o[0], "text": o[1], "selected": o[0] == el.value})
	}
	out := map[string]any{
		"exists":   true,
		"tag":      el.tag,
		"text":     el.text,
		"attrs":    el.attrs,
		"disabled": el.disabled,
		"hidden":   el.hidden,
		"width":    w,
		"height":   h,
		"x":        x,
		"y":        y,
		"options":  opts,
	}
	if el.tag == "select" {
		out["value"] = el.value
	}
	data, _ := json.Marshal(out)
	return data
}

// DispatchClick 命中坐标处的元素；只有获取按钮会响应点击
func (a *App) DispatchClick(ctx context.Context, x, y float64) error {
	a.mu.Lock()
	var hit string
	for id, el := range a.els {
		ex, ey := center(el)
		if ex == x && ey == y {
			hit = id
		}
	}
	btn := a.els[dogapp.TestIDFetchButton]
	if hit != dogapp.TestIDFetchButton || btn == nil || btn.disabled {
		a.mu.Unlock()
		return nil
	}
	btn.disabled = true
	btn.text = dogapp.LoadingText
	target := a.BaseURL + dogapp.DogsPath
	if breed := a.els[dogapp.TestIDBreedSelector].value; breed != "" {
		target += "?" + dogapp.BreedParam + "=" + url.QueryEscape(breed)
	}
	a.mu.Unlock()

	a.fetch(ctx, target, a.onDog)
	return nil
}

func (a *App) onBreeds(status int, body []byte) {
	sel := a.els[dogapp.TestIDBreedSelector]
	if sel == nil {
		return
	}
	if status != 200 || gjson.GetBytes(body, "status").String() != dogapp.StatusSuccess {
		return
	}
	var names []string
	gjson.GetBytes(body, "message").ForEach(func(k, _ gjson.Result) bool {
		names = append(names, k.String())
		return true
	})
	sort.Strings(names)
	for _, n := range names {
		sel.options = append(sel.options, [2]string{n, dogapp.BreedLabel(n)})
	}
}

func (a *App) onDog(status int, body []byte) {
	btn := a.els[dogapp.TestIDFetchButton]
	if btn != nil {
		btn.disabled = false
		btn.text = dogapp.FetchButtonText
	}

	msg := gjson.GetBytes(body, "message")
	src := msg.String()
	if msg.IsArray() {
		src = msg.Get("0").String()
	}
	if status != 200 || gjson.GetBytes(body, "status").String() != dogapp.StatusSuccess || src == "" {
		delete(a.els, dogapp.TestIDImageContainer)
		delete(a.els, dogapp.TestIDImage)
		a.add(dogapp.TestIDError, "div", dogapp.ErrorText)
		return
	}
	delete(a.els, dogapp.TestIDPlaceholder)
	delete(a.els, dogapp.TestIDError)
	if _, ok := a.els[dogapp.TestIDImageContainer]; !ok {
		a.add(dogapp.TestIDImageContainer, "div", "")
	}
	img, ok := a.els[dogapp.TestIDImage]
	if !ok {
		img = a.add(dogapp.TestIDImage, "img", "")
	}
	img.attrs["src"] = src
	img.attrs["alt"] = "Random dog"
}

// fetch 模拟页面的 fetch 调用：请求先经过拦截处理器
func (a *App) fetch(ctx context.Context, rawURL string, done func(int, []byte)) {
	a.mu.Lock()
	a.seq++
	id := fmt.Sprintf("interception-job-%d.0", a.seq)
	req := newRequest(id, rawURL)
	a.inflight[id] = &flight{req: req, done: done}
	h := a.h
	a.mu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if h == nil {
			_ = a.ContinueRequest(ctx, id)
			return
		}
		h.HandleRequest(ctx, req)
	}()
}

func newRequest(id, rawURL string) *traffic.Request {
	req := traffic.NewRequest()
	req.ID = id
	req.URL = rawURL
	req.Method = "GET"
	req.ResourceType = "Fetch"
	req.Headers.Set("Accept", "application/json")
	req.Headers.Set("User-Agent", "fakeapp")
	if u, err := url.Parse(rawURL); err == nil {
		req.Scheme = u.Scheme
		req.Host = u.Host
		req.Path = u.Path
		for k, vs := range u.Query() {
			req.Query[k] = vs[0]
		}
	}
	return req
}

func (a *App) take(id string) *flight {
	a.mu.Lock()
	defer a.mu.Unlock()
	f := a.inflight[id]
	delete(a.inflight, id)
	return f
}

func (a *App) deliver(f *flight, status int, body []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	f.done(status, body)
}

// ContinueRequest 请求放行到模拟上游，随后进入响应阶段
func (a *App) ContinueRequest(ctx context.Context, requestID string) error {
	a.mu.Lock()
	f := a.inflight[requestID]
	if f == nil {
		a.mu.Unlock()
		return fmt.Errorf("unknown request %s", requestID)
	}
	a.network = append(a.network, f.req.URL)
	h := a.h
	a.mu.Unlock()

	status, body := a.Upstream(f.req)
	f.status, f.body = status, body
	if h == nil {
		return a.ContinueResponse(ctx, requestID)
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		res := traffic.NewResponse()
		res.StatusCode = status
		res.Headers.Set("content-type", "application/json")
		h.HandleResponse(ctx, f.req, res)
	}()
	return nil
}

// ContinueResponse 把上游响应交给页面
func (a *App) ContinueResponse(_ context.Context, requestID string) error {
	f := a.take(requestID)
	if f == nil {
		return fmt.Errorf("unknown request %s", requestID)
	}
	a.deliver(f, f.status, f.body)
	return nil
}

// Fulfill 把合成响应交给页面
func (a *App) Fulfill(_ context.Context, requestID string, res *traffic.Response) error {
	f := a.take(requestID)
	if f == nil {
		return fmt.Errorf("unknown request %s", requestID)
	}
	a.deliver(f, res.StatusCode, res.Body)
	return nil
}

// Fail 页面收到网络错误
func (a *App) Fail(_ context.Context, requestID string, _ string) error {
	f := a.take(requestID)
	if f == nil {
		return fmt.Errorf("unknown request %s", requestID)
	}
	a.deliver(f, 0, nil)
	return nil
}

// ResponseBody 返回上游响应体
func (a *App) ResponseBody(_ context.Context, requestID string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	f := a.inflight[requestID]
	if f == nil {
		return nil, fmt.Errorf("unknown request %s", requestID)
	}
	return f.body, nil
}

func parseScript(expr string) (string, gjson.Result) {
	if !strings.HasPrefix(expr, "/*") {
		return "", gjson.Result{}
	}
	end := strings.Index(expr, "*/")
	if end < 0 {
		return "", gjson.Result{}
	}
	var args gjson.Result
	if i := strings.LastIndex(expr, ")({"); i >= 0 {
		args = gjson.Parse(strings.TrimSuffix(expr[i+2:], ")"))
	}
	return expr[2:end], args
}
