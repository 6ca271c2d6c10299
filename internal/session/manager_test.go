package session

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdpharness/internal/dogapp"
	"cdpharness/internal/logger"
	"cdpharness/internal/testutil/fakeapp"
	"cdpharness/pkg/model"
	"cdpharness/pkg/routespec"
)

func fakeDial(apps *[]*fakeapp.App) DialFunc {
	return func(_ context.Context, cfg model.SessionConfig, _ logger.Logger) (Browser, error) {
		app := fakeapp.New(cfg.BaseURL)
		*apps = append(*apps, app)
		return app, nil
	}
}

func testConfig() model.SessionConfig {
	return model.SessionConfig{BaseURL: "http://localhost:3000", DefaultTimeoutMS: 2000, PollIntervalMS: 10}
}

func TestCreateIsolatesSessions(t *testing.T) {
	var apps []*fakeapp.App
	m := NewManager(nil, fakeDial(&apps))
	ctx := context.Background()

	a, err := m.Create(ctx, testConfig())
	require.NoError(t, err)
	b, err := m.Create(ctx, testConfig())
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, m.List(), 2)

	r, err := a.Driver.Intercept(routespec.Rule{
		Method:     http.MethodGet,
		URLPattern: dogapp.DogsPath,
		Response:   &routespec.ResponseSpec{Body: dogapp.DogBody("https://images.dog.ceo/breeds/husky/a.jpg")},
	})
	require.NoError(t, err)

	require.NoError(t, a.Driver.Visit(ctx, "/"))
	require.NoError(t, b.Driver.Visit(ctx, "/"))
	require.NoError(t, a.Driver.Click(ctx, dogapp.TestIDFetchButton))
	require.NoError(t, b.Driver.Click(ctx, dogapp.TestIDFetchButton))
	_, err = a.Driver.Wait(ctx, r, time.Second)
	require.NoError(t, err)

	require.NoError(t, a.Driver.Get(dogapp.TestIDImage).ShouldHaveAttrContaining(ctx, "src", "husky/a.jpg"))
	require.NoError(t, b.Driver.Get(dogapp.TestIDImage).ShouldHaveAttrContaining(ctx, "src", "hound-afghan"))
	assert.Contains(t, apps[1].NetworkHits(), "http://localhost:3000"+dogapp.DogsPath)
	assert.NotContains(t, apps[0].NetworkHits(), "http://localhost:3000"+dogapp.DogsPath)

	require.NoError(t, m.CloseAll())
	assert.Empty(t, m.List())
}

func TestSubscribeReceivesEvents(t *testing.T) {
	var apps []*fakeapp.App
	m := NewManager(nil, fakeDial(&apps))
	ctx := context.Background()
	s, err := m.Create(ctx, testConfig())
	require.NoError(t, err)
	events := s.Subscribe()

	_, err = s.Driver.Intercept(routespec.Rule{URLPattern: dogapp.BreedsPath})
	require.NoError(t, err)
	require.NoError(t, s.Driver.Visit(ctx, "/"))

	seen := map[string]bool{}
	timeout := time.After(2 * time.Second)
	for !seen[model.EventCompleted] {
		select {
		case evt := <-events:
			assert.Equal(t, s.ID, evt.Session)
			assert.Equal(t, model.TargetID("fake-page"), evt.Target)
			seen[evt.Type] = true
		case <-timeout:
			t.Fatalf("events seen so far: %v", seen)
		}
	}
	assert.True(t, seen[model.EventMatched])

	require.NoError(t, m.Delete(s.ID))
	_, ok := <-events
	assert.False(t, ok, "subscription should close with the session")
	assert.Error(t, m.Delete(s.ID))
}

func TestCreateDialFailure(t *testing.T) {
	m := NewManager(nil, func(context.Context, model.SessionConfig, logger.Logger) (Browser, error) {
		return nil, errors.New("connection refused")
	})
	_, err := m.Create(context.Background(), testConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect browser")
	assert.Empty(t, m.List())
}

func TestCloseReportsHandlerErrors(t *testing.T) {
	var apps []*fakeapp.App
	m := NewManager(nil, fakeDial(&apps))
	ctx := context.Background()
	s, err := m.Create(ctx, testConfig())
	require.NoError(t, err)

	r, err := s.Driver.Intercept(routespec.Rule{
		URLPattern: dogapp.BreedsPath,
		Handler:    func(*routespec.Intercepted) error { return errors.New("boom") },
	})
	require.NoError(t, err)
	require.NoError(t, s.Driver.Visit(ctx, "/"))
	_, _ = s.Driver.Wait(ctx, r, time.Second)

	err = m.Delete(s.ID)
	var herr *model.HandlerError
	assert.True(t, errors.As(err, &herr))
}
