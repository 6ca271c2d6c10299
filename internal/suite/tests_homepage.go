package suite

import (
	"github.com/stretchr/testify/require"

	"cdpharness/internal/dogapp"
)

func DoHomepageTests(t *T) {
	t.Run("title and subtitle", func(t *T) {
		p := visitHome(t)
		title := p.Get(dogapp.TestIDPageTitle)
		require.NoError(t, title.ShouldBeVisible(t.Context()))
		require.NoError(t, title.ShouldContainText(t.Context(), dogapp.TitleText))

		subtitle := p.Get(dogapp.TestIDPageSubtitle)
		require.NoError(t, subtitle.ShouldBeVisible(t.Context()))
		require.NoError(t, subtitle.ShouldContainText(t.Context(), dogapp.SubtitleText))
	})

	t.Run("breed selector and fetch button", func(t *T) {
		p := visitHome(t)
		require.NoError(t, p.Get(dogapp.TestIDBreedSelector).ShouldBeVisible(t.Context()))
		btn := p.Get(dogapp.TestIDFetchButton)
		require.NoError(t, btn.ShouldBeVisible(t.Context()))
		require.NoError(t, btn.ShouldContainText(t.Context(), dogapp.FetchButtonText))
	})

	t.Run("placeholder message", func(t *T) {
		p := visitHome(t)
		msg := p.Get(dogapp.TestIDPlaceholder)
		require.NoError(t, msg.ShouldBeVisible(t.Context()))
		require.NoError(t, msg.ShouldContainText(t.Context(), dogapp.PlaceholderText))
	})

	t.Run("no dog image initially", func(t *T) {
		p := visitHome(t)
		require.NoError(t, p.Get(dogapp.TestIDImageContainer).ShouldNotExist(t.Context()))
	})

	t.Run("no error message initially", func(t *T) {
		p := visitHome(t)
		requireNoError(t, p)
	})
}
