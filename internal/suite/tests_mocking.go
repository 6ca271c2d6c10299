package suite

import (
	"fmt"
	"net/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdpharness/internal/dogapp"
	"cdpharness/internal/driver"
	"cdpharness/pkg/routespec"
)

func DoAPIMockingTests(t *T) {
	t.Run("successful response", func(t *T) {
		p := visitHome(t)
		r, err := p.Intercept(routespec.Rule{Method: http.MethodGet, URLPattern: dogapp.DogsPath, Response: dogStub(huskyImage), Alias: "getDog"})
		require.NoError(t, err)

		clickFetch(t, p)
		in, err := p.Wait(t.Context(), r, 0)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, in.Response.StatusCode)
		requireImage(t, p, huskyImageID)
	})

	t.Run("server error", func(t *T) {
		t.RequireCapability(CapabilityErrorDisplay)
		p := visitHome(t)
		r, err := p.Intercept(routespec.Rule{
			Method:     http.MethodGet,
			URLPattern: dogapp.DogsPath,
			Response:   &routespec.ResponseSpec{StatusCode: http.StatusInternalServerError, Body: map[string]string{"error": "Internal Server Error"}},
			Alias:      "getDogError",
		})
		require.NoError(t, err)

		clickFetch(t, p)
		_, err = p.Wait(t.Context(), r, 0)
		require.NoError(t, err)
		msg := p.Get(dogapp.TestIDError)
		require.NoError(t, msg.ShouldBeVisible(t.Context()))
		require.NoError(t, msg.ShouldContainText(t.Context(), dogapp.ErrorText))
	})

	t.Run("slow response", func(t *T) {
		delay := t.Params().SlowResponseDelay
		p := visitHome(t)
		r, err := p.Intercept(routespec.Rule{
			Method:     http.MethodGet,
			URLPattern: dogapp.DogsPath,
			Response:   &routespec.ResponseSpec{StatusCode: http.StatusOK, Body: dogStub(huskyImage).Body, Delay: delay},
			Alias:      "getSlowDog",
		})
		require.NoError(t, err)

		clickFetch(t, p)
		btn := p.Get(dogapp.TestIDFetchButton)
		require.NoError(t, btn.ShouldContainText(t.Context(), dogapp.LoadingText))
		require.NoError(t, btn.ShouldBeDisabled(t.Context()))

		in, err := p.Wait(t.Context(), r, delay+driver.DefaultRouteTimeout)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, in.Duration(), delay)
		requireImage(t, p, "")
	})

	t.Run("breeds failure", func(t *T) {
		p := t.Page()
		r, err := p.Intercept(routespec.Rule{
			Method:     http.MethodGet,
			URLPattern: dogapp.BreedsPath,
			Response:   &routespec.ResponseSpec{StatusCode: http.StatusInternalServerError, Body: map[string]string{"error": "Failed to load breeds"}},
			Alias:      "getBreedsError",
		})
		require.NoError(t, err)
		require.NoError(t, p.Visit(t.Context(), "/"))
		_, err = p.Wait(t.Context(), r, 0)
		require.NoError(t, err)

		sel := p.Get(dogapp.TestIDBreedSelector)
		require.NoError(t, sel.ShouldBeVisible(t.Context()))
		require.NoError(t, sel.ShouldHaveOptionCount(t.Context(), driver.Exactly(1)))
	})

	t.Run("request headers", func(t *T) {
		p := visitHome(t)
		r, err := p.Intercept(routespec.Rule{
			Method:     http.MethodGet,
			URLPattern: dogapp.DogsPath,
			Alias:      "getDog",
			Handler: func(req *routespec.Intercepted) error {
				if !req.Headers.Has("accept") {
					return fmt.Errorf("request to %s has no accept header", req.URL)
				}
				return req.Reply(*dogStub(huskyImage))
			},
		})
		require.NoError(t, err)

		clickFetch(t, p)
		in, err := p.Wait(t.Context(), r, 0)
		require.NoError(t, err)
		t.Debug("accept: %s", in.Request.Headers["accept"])
	})

	t.Run("breed query parameter", func(t *T) {
		p := visitHome(t)
		waitForBreeds(t, p)
		r, err := p.Intercept(routespec.Rule{Method: http.MethodGet, URLPattern: dogapp.DogsQuery("husky"), Alias: "getHusky"})
		require.NoError(t, err)

		selectBreed(t, p, "husky")
		clickFetch(t, p)
		in, err := p.Wait(t.Context(), r, 0)
		require.NoError(t, err)
		assert.Equal(t, "husky", in.Request.Query[dogapp.BreedParam])
	})
}
