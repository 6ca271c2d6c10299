package suite

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdpharness/internal/dogapp"
)

func DoBreedSelectionTests(t *T) {
	t.Run("loads breed options", func(t *T) {
		p := visitHome(t)
		waitForBreeds(t, p)
	})

	t.Run("fetches the selected breed", func(t *T) {
		p := visitHome(t)
		waitForBreeds(t, p)
		selectBreed(t, p, "husky")
		clickFetch(t, p)
		requireImage(t, p, "husky")
	})

	t.Run("switches between breeds", func(t *T) {
		p := visitHome(t)
		waitForBreeds(t, p)
		selectBreed(t, p, "husky")
		clickFetch(t, p)
		requireImage(t, p, "husky")

		selectBreed(t, p, "beagle")
		clickFetch(t, p)
		requireImage(t, p, "beagle")
	})

	t.Run("capitalizes breed names", func(t *T) {
		p := visitHome(t)
		waitForBreeds(t, p)
		opts, err := p.Get(dogapp.TestIDBreedSelector).Options(t.Context())
		require.NoError(t, err)
		require.Greater(t, len(opts), 1)
		t.Debug("first breed option: %q", opts[1].Text)
		assert.True(t, dogapp.IsCapitalized(opts[1].Text), "breed label %q is not capitalized", opts[1].Text)
	})
}
