package suite

import (
	"net/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdpharness/internal/dogapp"
	"cdpharness/pkg/routespec"
)

func DoFetchTests(t *T) {
	t.Run("displays a random dog image", func(t *T) {
		p := visitHome(t)
		clickFetch(t, p)
		requireImage(t, p, "dog.ceo")
		require.NoError(t, p.Get(dogapp.TestIDPlaceholder).ShouldNotExist(t.Context()))
	})

	t.Run("different images on multiple clicks", func(t *T) {
		p := t.Page()
		_, err := p.Intercept(routespec.Rule{Method: http.MethodGet, URLPattern: dogapp.DogsPath, Response: dogStub(beagleImage)})
		require.NoError(t, err)
		// 第一次点击命中只生效一次的路由，之后回落到上面的路由
		_, err = p.Intercept(routespec.Rule{Method: http.MethodGet, URLPattern: dogapp.DogsPath, Response: dogStub(huskyImage), Times: 1})
		require.NoError(t, err)
		require.NoError(t, p.Visit(t.Context(), "/"))

		clickFetch(t, p)
		requireImage(t, p, huskyImageID)
		first, err := p.Get(dogapp.TestIDImage).Attr(t.Context(), "src")
		require.NoError(t, err)

		clickFetch(t, p)
		requireImage(t, p, "beagle")
		second, err := p.Get(dogapp.TestIDImage).Attr(t.Context(), "src")
		require.NoError(t, err)
		t.Debug("images: %s then %s", first, second)
		assert.NotEqual(t, first, second)
	})

	t.Run("rapid successive clicks", func(t *T) {
		p := visitHome(t)
		clickFetch(t, p)
		clickFetch(t, p)
		clickFetch(t, p)
		requireImage(t, p, "")
	})
}
