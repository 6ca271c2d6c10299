package handler

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdpharness/internal/route"
	"cdpharness/pkg/model"
	"cdpharness/pkg/routespec"
	"cdpharness/pkg/traffic"
)

type call struct {
	op     string
	id     string
	status int
	body   string
	reason string
	at     time.Time
}

type fakeExecutor struct {
	mu    sync.Mutex
	calls []call
	body  []byte
	fail  error
}

func (f *fakeExecutor) record(c call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.at = time.Now()
	f.calls = append(f.calls, c)
	return f.fail
}

func (f *fakeExecutor) ContinueRequest(_ context.Context, id string) error {
	return f.record(call{op: "continue", id: id})
}

func (f *fakeExecutor) ContinueResponse(_ context.Context, id string) error {
	return f.record(call{op: "continueResponse", id: id})
}

func (f *fakeExecutor) Fulfill(_ context.Context, id string, res *traffic.Response) error {
	return f.record(call{op: "fulfill", id: id, status: res.StatusCode, body: string(res.Body)})
}

func (f *fakeExecutor) Fail(_ context.Context, id string, reason string) error {
	return f.record(call{op: "fail", id: id, reason: reason})
}

func (f *fakeExecutor) ResponseBody(_ context.Context, id string) ([]byte, error) {
	_ = f.record(call{op: "body", id: id})
	return f.body, nil
}

func (f *fakeExecutor) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		out = append(out, c.op)
	}
	return out
}

func (f *fakeExecutor) last() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func newRequest(id, raw string) *traffic.Request {
	u, _ := url.Parse(raw)
	req := traffic.NewRequest()
	req.ID = id
	req.Method = "GET"
	req.URL = raw
	req.Scheme, req.Host, req.Path = u.Scheme, u.Host, u.Path
	for k, vs := range u.Query() {
		req.Query[k] = vs[0]
	}
	return req
}

func setup(t *testing.T) (*Handler, *route.Table, *fakeExecutor, chan model.Event) {
	t.Helper()
	tb := route.NewTable(nil)
	ex := &fakeExecutor{}
	events := make(chan model.Event, 64)
	h := New(Config{Table: tb, Executor: ex, Events: events, Session: "s1", Target: "t1"})
	return h, tb, ex, events
}

func register(t *testing.T, tb *route.Table, rule routespec.Rule) *route.Route {
	t.Helper()
	r, err := tb.Register(rule)
	require.NoError(t, err)
	return r
}

func TestStubFulfillsWithoutNetwork(t *testing.T) {
	h, tb, ex, events := setup(t)
	r := register(t, tb, routespec.Rule{
		Method:     "GET",
		URLPattern: "/api/dogs",
		Response:   &routespec.ResponseSpec{Body: map[string]string{"message": "https://example.com/dog.jpg", "status": "success"}},
	})

	h.HandleRequest(context.Background(), newRequest("r1", "http://localhost:3000/api/dogs"))

	assert.Equal(t, []string{"fulfill"}, ex.ops())
	in, err := r.Await(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, ResultFulfilled, in.Result)
	assert.Equal(t, 200, in.Response.StatusCode)
	assert.JSONEq(t, `{"message":"https://example.com/dog.jpg","status":"success"}`, in.Response.Body)
	assert.Equal(t, "application/json", in.Response.Headers["content-type"])

	evt := <-events
	assert.Equal(t, model.EventMatched, evt.Type)
	assert.Equal(t, model.SessionID("s1"), evt.Session)
	evt = <-events
	assert.Equal(t, model.EventFulfilled, evt.Type)
	assert.Equal(t, 200, evt.StatusCode)
}

func TestStubDelayPrecedesCompletion(t *testing.T) {
	h, tb, ex, _ := setup(t)
	r := register(t, tb, routespec.Rule{
		URLPattern: "/api/dogs",
		Response:   &routespec.ResponseSpec{Body: "{}", Delay: 150 * time.Millisecond},
	})

	start := time.Now()
	go h.HandleRequest(context.Background(), newRequest("r1", "http://localhost:3000/api/dogs"))

	_, err := r.Await(context.Background(), 40*time.Millisecond)
	var terr *model.RouteTimeoutError
	require.True(t, errors.As(err, &terr), "completion must not be visible during the delay")
	assert.Equal(t, int64(1), r.Matched())

	in, err := r.Await(context.Background(), time.Second)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ex.last().at.Sub(start), 150*time.Millisecond)
	assert.GreaterOrEqual(t, in.Duration(), 150*time.Millisecond)
}

func TestStubDelayAbortedByContext(t *testing.T) {
	h, tb, ex, _ := setup(t)
	r := register(t, tb, routespec.Rule{
		URLPattern: "/api/dogs",
		Response:   &routespec.ResponseSpec{Delay: time.Minute},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	h.HandleRequest(ctx, newRequest("r1", "http://localhost:3000/api/dogs"))
	assert.Empty(t, ex.ops())
	assert.Empty(t, r.History())
}

func TestSpyCompletesAtResponseStage(t *testing.T) {
	h, tb, ex, events := setup(t)
	ex.body = []byte(`{"status":"success"}`)
	r := register(t, tb, routespec.Rule{URLPattern: "/api/dogs", Alias: "spy"})
	req := newRequest("r1", "http://localhost:3000/api/dogs")

	h.HandleRequest(context.Background(), req)
	assert.Equal(t, []string{"continue"}, ex.ops())
	assert.Empty(t, r.History())

	res := traffic.NewResponse()
	res.Headers.Set("Content-Type", "application/json")
	h.HandleResponse(context.Background(), req, res)

	assert.Equal(t, []string{"continue", "body", "continueResponse"}, ex.ops())
	in, err := r.Await(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, ResultPassed, in.Result)
	assert.Equal(t, `{"status":"success"}`, in.Response.Body)
	assert.Equal(t, "spy", in.Alias)

	var types []string
	for len(events) > 0 {
		types = append(types, (<-events).Type)
	}
	assert.Equal(t, []string{model.EventMatched, model.EventPassed, model.EventCompleted}, types)
}

func TestResponseStageForUnmatchedRequest(t *testing.T) {
	h, _, ex, _ := setup(t)
	h.HandleResponse(context.Background(), newRequest("r9", "http://localhost:3000/app.js"), traffic.NewResponse())
	assert.Equal(t, []string{"continueResponse"}, ex.ops())
}

func TestLoadingFailedCompletesSpy(t *testing.T) {
	h, tb, _, _ := setup(t)
	r := register(t, tb, routespec.Rule{URLPattern: "/api/dogs"})
	req := newRequest("r1", "http://localhost:3000/api/dogs")
	h.HandleRequest(context.Background(), req)
	h.HandleLoadingFailed(req, "net::ERR_FAILED")

	in, err := r.Await(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, ResultFailed, in.Result)
	assert.Equal(t, "net::ERR_FAILED", in.Response.Body)
}

func TestHandlerReply(t *testing.T) {
	h, tb, ex, _ := setup(t)
	var seen *traffic.Request
	r := register(t, tb, routespec.Rule{
		URLPattern: "/api/dogs",
		Handler: func(req *routespec.Intercepted) error {
			seen = req.Request
			return req.Reply(routespec.ResponseSpec{StatusCode: 503, Body: "down"})
		},
	})

	h.HandleRequest(context.Background(), newRequest("r1", "http://localhost:3000/api/dogs?breed=husky"))

	require.NotNil(t, seen)
	assert.Equal(t, "husky", seen.Query["breed"])
	assert.Equal(t, call{op: "fulfill", id: "r1", status: 503, body: "down"}, withoutTime(ex.last()))
	in, err := r.Await(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "husky", in.Request.Query["breed"])
}

func TestHandlerWithoutReplyPassesThrough(t *testing.T) {
	h, tb, ex, _ := setup(t)
	register(t, tb, routespec.Rule{URLPattern: "/api/dogs", Handler: func(*routespec.Intercepted) error { return nil }})

	h.HandleRequest(context.Background(), newRequest("r1", "http://localhost:3000/api/dogs"))
	assert.Equal(t, []string{"continue"}, ex.ops())
}

func TestHandlerErrorSurfaces(t *testing.T) {
	for name, fn := range map[string]routespec.HandlerFunc{
		"error": func(*routespec.Intercepted) error { return errors.New("query mismatch") },
		"panic": func(*routespec.Intercepted) error { panic("assertion failed") },
	} {
		t.Run(name, func(t *testing.T) {
			h, tb, ex, _ := setup(t)
			r := register(t, tb, routespec.Rule{URLPattern: "/api/dogs", Alias: "check", Handler: fn})

			assert.NotPanics(t, func() {
				h.HandleRequest(context.Background(), newRequest("r1", "http://localhost:3000/api/dogs"))
			})
			assert.Equal(t, []string{"continue"}, ex.ops())

			_, err := r.Await(context.Background(), time.Second)
			var herr *model.HandlerError
			require.True(t, errors.As(err, &herr))
			assert.Equal(t, "check", herr.Alias)

			errs := h.Reset()
			require.Len(t, errs, 1)
			assert.Empty(t, h.Errors())
		})
	}
}

func TestUnmatchedPassesByDefault(t *testing.T) {
	h, _, ex, events := setup(t)
	h.HandleRequest(context.Background(), newRequest("r1", "http://localhost:3000/api/dogs"))
	assert.Equal(t, []string{"continue"}, ex.ops())
	assert.Equal(t, model.EventUnmatched, (<-events).Type)
}

func TestBlockUnmatched(t *testing.T) {
	h, tb, ex, events := setup(t)
	h.SetBlockUnmatched(true)
	register(t, tb, routespec.Rule{URLPattern: "/api/dogs/breeds", Response: &routespec.ResponseSpec{}})

	h.HandleRequest(context.Background(), newRequest("r1", "http://localhost:3000/api/dogs"))
	assert.Equal(t, call{op: "fail", id: "r1", reason: "BlockedByClient"}, withoutTime(ex.last()))
	assert.Equal(t, model.EventBlocked, (<-events).Type)

	h.HandleRequest(context.Background(), newRequest("r2", "http://localhost:3000/api/dogs/breeds"))
	assert.Equal(t, "fulfill", ex.last().op)
}

func TestFulfillFailureRecordedOnInterception(t *testing.T) {
	h, tb, ex, _ := setup(t)
	ex.fail = errors.New("target closed")
	r := register(t, tb, routespec.Rule{URLPattern: "/api/dogs", Response: &routespec.ResponseSpec{}})

	h.HandleRequest(context.Background(), newRequest("r1", "http://localhost:3000/api/dogs"))
	in, err := r.Await(context.Background(), time.Second)
	require.Error(t, err)
	assert.Equal(t, ResultFailed, in.Result)
}

func withoutTime(c call) call {
	c.at = time.Time{}
	return c
}
