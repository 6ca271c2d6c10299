package suite

import (
	"net/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdpharness/internal/dogapp"
)

func DoAPIValidationTests(t *T) {
	t.Run("breeds response structure", func(t *T) {
		breeds, res, err := t.API().Breeds(t.Context())
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, dogapp.StatusSuccess, breeds.Status)
		assert.NotEmpty(t, breeds.Names())
		t.Debug("%d breeds in %s", len(breeds.Breeds), res.Duration)
	})

	t.Run("random dog response structure", func(t *T) {
		dog, res, err := t.API().RandomDog(t.Context(), "")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, dogapp.StatusSuccess, dog.Status)
		require.False(t, dog.IsList, "message should be a single URL")
		require.Len(t, dog.Images, 1)
		assert.Contains(t, dog.Images[0], "https://")
		assert.Contains(t, dog.Images[0], "dog.ceo")
	})

	t.Run("specific breed response", func(t *T) {
		dog, res, err := t.API().RandomDog(t.Context(), "husky")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, dogapp.StatusSuccess, dog.Status)
		require.NotEmpty(t, dog.Images)
		assert.Contains(t, dog.Images[0], "husky")
	})
}
