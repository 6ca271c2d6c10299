package suite

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdpharness/internal/dogapp"
	"cdpharness/internal/logger"
	"cdpharness/internal/session"
	"cdpharness/internal/testutil/fakeapp"
	"cdpharness/pkg/api"
	"cdpharness/pkg/model"
	"cdpharness/pkg/routespec"
	"cdpharness/pkg/traffic"
)

func fakeDial(_ context.Context, cfg model.SessionConfig, _ logger.Logger) (session.Browser, error) {
	return fakeapp.New(cfg.BaseURL), nil
}

// upstreamHandler 用模拟上游回答直接的接口校验请求
func upstreamHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := traffic.NewRequest()
		req.Method = r.Method
		req.Path = r.URL.Path
		for k, vs := range r.URL.Query() {
			req.Query[k] = vs[0]
		}
		status, body := fakeapp.DefaultUpstream(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(body)
	})
}

func testConfig(t *testing.T, baseURL string, capabilities ...string) Config {
	svc, err := api.NewService(nil, nil, api.WithDialer(fakeDial))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return Config{
		Service: svc,
		Session: model.SessionConfig{
			BaseURL:          baseURL,
			DefaultTimeoutMS: 2000,
			PollIntervalMS:   10,
			RouteTimeoutMS:   2000,
		},
		Capabilities: capabilities,
		Params:       Params{SlowResponseDelay: 200 * time.Millisecond, ImageTimeout: 2 * time.Second},
	}
}

func describeFailures(results Results) string {
	var sb strings.Builder
	PrintResults(&sb, results)
	return sb.String()
}

func TestRunSuiteAgainstFakeApp(t *testing.T) {
	httphelpers.WithServer(upstreamHandler(), func(server *httptest.Server) {
		var out bytes.Buffer
		tl := &ConsoleTestLogger{Out: &out, DebugOutputOnFailure: true}
		results := RunSuite(context.Background(), testConfig(t, server.URL, AllCapabilities...), nil, tl)

		require.True(t, results.OK(), describeFailures(results)+out.String())
		assert.Empty(t, results.Skipped)
		assert.GreaterOrEqual(t, len(results.Tests), 20)
		assert.Contains(t, out.String(), "[api mocking/slow response]")
	})
}

func TestRunSuiteSkipsErrorDisplayWithoutCapability(t *testing.T) {
	httphelpers.WithServer(upstreamHandler(), func(server *httptest.Server) {
		results := RunSuite(context.Background(), testConfig(t, server.URL), nil, nil)
		require.True(t, results.OK(), describeFailures(results))

		var skipped []string
		for _, r := range results.Skipped {
			skipped = append(skipped, r.TestID.String())
		}
		assert.ElementsMatch(t, []string{"api mocking/server error", "user journey/error and recovery"}, skipped)
	})
}

func TestRegexFilters(t *testing.T) {
	var f RegexFilters
	require.NoError(t, f.MustMatch.Set("api mocking/success"))
	require.NoError(t, f.MustNotMatch.Set("validation"))

	id := func(path ...string) TestID { return TestID{Path: path} }
	assert.True(t, f.AsFilter(id("api mocking")))
	assert.True(t, f.AsFilter(id("api mocking", "successful response")))
	assert.False(t, f.AsFilter(id("api mocking", "slow response")))
	assert.False(t, f.AsFilter(id("homepage")))

	var skipOnly RegexFilters
	require.NoError(t, skipOnly.MustNotMatch.Set("api validation"))
	assert.False(t, skipOnly.AsFilter(id("api validation")))
	assert.False(t, skipOnly.AsFilter(id("api validation", "breeds response structure")))
	assert.True(t, skipOnly.AsFilter(id("api mocking")))

	assert.Equal(t, []string{"validation"}, f.MustNotMatch.Values())
	assert.Equal(t, `"api mocking/success"`, f.MustMatch.String())
	assert.Error(t, f.MustMatch.Set("(unclosed"))
}

func TestFilteredRunOnlyRecordsSelectedTests(t *testing.T) {
	var f RegexFilters
	require.NoError(t, f.MustMatch.Set("homepage/title"))

	results := RunSuite(context.Background(), testConfig(t, "http://localhost:3000"), f.AsFilter, nil)
	require.True(t, results.OK(), describeFailures(results))
	require.Len(t, results.Tests, 1)
	assert.Equal(t, "homepage/title and subtitle", results.Tests[0].TestID.String())
	assert.NotEmpty(t, results.Skipped)
}

func TestFailuresAndPanicsAreRecorded(t *testing.T) {
	results := Run(context.Background(), testConfig(t, "http://localhost:3000"), nil, nil, func(t *T) {
		t.Run("group", func(t *T) {
			t.Run("assertion", func(t *T) {
				require.Equal(t, 1, 2)
				t.Errorf("not reached")
			})
			t.Run("panic", func(t *T) {
				panic("boom")
			})
			t.Run("soft failures", func(t *T) {
				t.Errorf("first")
				t.Errorf("second")
			})
			t.Run("passes", func(t *T) {})
			t.Run("skipped", func(t *T) {
				t.SkipWithReason("not today")
			})
		})
	})

	assert.False(t, results.OK())
	assert.Len(t, results.Tests, 5)
	require.Len(t, results.Failures, 3)
	assert.Equal(t, "group/assertion", results.Failures[0].TestID.String())
	assert.Len(t, results.Failures[0].Errors, 1)
	assert.Contains(t, results.Failures[1].Errors[0].Error(), "unexpected panic in test: boom")
	assert.Len(t, results.Failures[2].Errors, 2)
	require.Len(t, results.Skipped, 1)
	assert.Equal(t, "group/skipped", results.Skipped[0].TestID.String())
}

func TestHandlerErrorFailsTestAtTeardown(t *testing.T) {
	results := Run(context.Background(), testConfig(t, "http://localhost:3000"), nil, nil, func(t *T) {
		t.Run("broken handler", func(t *T) {
			p := visitHome(t)
			_, err := p.Intercept(routespec.Rule{
				URLPattern: dogapp.DogsPath,
				Handler: func(*routespec.Intercepted) error {
					return errors.New("handler exploded")
				},
			})
			require.NoError(t, err)
			clickFetch(t, p)
			requireImage(t, p, "")
		})
	})

	require.Len(t, results.Failures, 1)
	errs := results.Failures[0].Errors
	require.NotEmpty(t, errs)
	last := errs[len(errs)-1]
	assert.Contains(t, last.Error(), "teardown")
	var herr *model.HandlerError
	assert.ErrorAs(t, last, &herr)
}

func TestConsoleTestLoggerOutput(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = noColor }()

	var out bytes.Buffer
	tl := &ConsoleTestLogger{Out: &out, DebugOutputOnFailure: true}
	results := Run(context.Background(), testConfig(t, "http://localhost:3000"), nil, tl, func(t *T) {
		t.Run("fails", func(t *T) {
			t.Debug("looking at %s", "the page")
			t.Errorf("line one\nline two")
		})
		t.Run("needs capability", func(t *T) {
			t.RequireCapability(CapabilityErrorDisplay)
		})
	})

	s := out.String()
	assert.Contains(t, s, "[fails]")
	assert.Contains(t, s, "  line one\n  line two\n")
	assert.Contains(t, s, "FAILED: fails")
	assert.Contains(t, s, "DEBUG ")
	assert.Contains(t, s, "looking at the page")
	assert.Contains(t, s, `SKIPPED: needs capability (app does not have capability "error-display")`)

	var summary bytes.Buffer
	PrintResults(&summary, results)
	assert.Contains(t, summary.String(), "FAILED TESTS (1 of 1):")
	assert.Contains(t, summary.String(), "  * fails")
}

func TestAPICheckerUsesBaseURL(t *testing.T) {
	handler, requests := httphelpers.RecordingHandler(upstreamHandler())
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		results := Run(context.Background(), testConfig(t, server.URL), nil, nil, DoAPIValidationTests)
		require.True(t, results.OK(), describeFailures(results))
	})

	var paths []string
	for len(requests) > 0 {
		r := <-requests
		q := r.Request.URL.Query().Get(dogapp.BreedParam)
		paths = append(paths, r.Request.URL.Path+"?"+q)
	}
	assert.Equal(t, []string{dogapp.BreedsPath + "?", dogapp.DogsPath + "?", dogapp.DogsPath + "?husky"}, paths)
}
