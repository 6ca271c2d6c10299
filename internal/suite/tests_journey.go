package suite

import (
	"net/http"

	"github.com/stretchr/testify/require"

	"cdpharness/internal/dogapp"
	"cdpharness/pkg/routespec"
)

func DoUserJourneyTests(t *T) {
	t.Run("full workflow", func(t *T) {
		p := visitHome(t)
		title := p.Get(dogapp.TestIDPageTitle)
		require.NoError(t, title.ShouldBeVisible(t.Context()))
		require.NoError(t, title.ShouldContainText(t.Context(), dogapp.TitleText))
		waitForBreeds(t, p)

		clickFetch(t, p)
		requireImage(t, p, "")

		selectBreed(t, p, "husky")
		clickFetch(t, p)
		requireImage(t, p, "husky")

		selectBreed(t, p, "beagle")
		clickFetch(t, p)
		requireImage(t, p, "beagle")

		selectBreed(t, p, "")
		clickFetch(t, p)
		requireImage(t, p, "")

		requireNoError(t, p)
	})

	t.Run("error and recovery", func(t *T) {
		t.RequireCapability(CapabilityErrorDisplay)
		p := visitHome(t)
		failing, err := p.Intercept(routespec.Rule{
			Method:     http.MethodGet,
			URLPattern: dogapp.DogsPath,
			Response:   &routespec.ResponseSpec{StatusCode: http.StatusInternalServerError, Body: map[string]string{"error": "Internal Server Error"}},
			Alias:      "getDogError",
		})
		require.NoError(t, err)

		clickFetch(t, p)
		_, err = p.Wait(t.Context(), failing, 0)
		require.NoError(t, err)
		msg := p.Get(dogapp.TestIDError)
		require.NoError(t, msg.ShouldBeVisible(t.Context()))
		require.NoError(t, msg.ShouldContainText(t.Context(), dogapp.ErrorText))

		// 后注册的观察路由优先，请求回到真实网络
		recovered, err := p.Intercept(routespec.Rule{Method: http.MethodGet, URLPattern: dogapp.DogsPath, Alias: "getDogSuccess"})
		require.NoError(t, err)
		clickFetch(t, p)
		_, err = p.Wait(t.Context(), recovered, 0)
		require.NoError(t, err)
		requireNoError(t, p)
		requireImage(t, p, "")
	})

	t.Run("complete feature set", func(t *T) {
		p := visitHome(t)
		require.NoError(t, p.Get(dogapp.TestIDPageTitle).ShouldBeVisible(t.Context()))
		require.NoError(t, p.Get(dogapp.TestIDPageSubtitle).ShouldBeVisible(t.Context()))
		require.NoError(t, p.Get(dogapp.TestIDPlaceholder).ShouldBeVisible(t.Context()))
		require.NoError(t, p.Get(dogapp.TestIDBreedSelector).ShouldBeVisible(t.Context()))
		waitForBreeds(t, p)

		// 首次请求延迟返回，保证能观察到加载状态
		slow := dogStub(huskyImage)
		slow.Delay = t.Params().SlowResponseDelay
		_, err := p.Intercept(routespec.Rule{Method: http.MethodGet, URLPattern: dogapp.DogsPath, Response: slow, Times: 1})
		require.NoError(t, err)

		btn := p.Get(dogapp.TestIDFetchButton)
		require.NoError(t, btn.ShouldBeVisible(t.Context()))
		require.NoError(t, btn.ShouldBeEnabled(t.Context()))
		clickFetch(t, p)
		require.NoError(t, btn.ShouldContainText(t.Context(), dogapp.LoadingText))

		requireImage(t, p, "dog.ceo")
		require.NoError(t, p.Get(dogapp.TestIDPlaceholder).ShouldNotExist(t.Context()))

		clickFetch(t, p)
		requireImage(t, p, "")
	})
}
