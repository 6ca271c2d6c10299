package suite

import (
	"encoding/json"

	"github.com/stretchr/testify/require"

	"cdpharness/internal/dogapp"
	"cdpharness/internal/driver"
	"cdpharness/pkg/routespec"
)

const (
	huskyImage   = "https://images.dog.ceo/breeds/husky/n02110185_1469.jpg"
	huskyImageID = "n02110185_1469"
	beagleImage  = "https://images.dog.ceo/breeds/beagle/n02088364_11136.jpg"
)

func visitHome(t *T) *driver.Session {
	p := t.Page()
	require.NoError(t, p.Visit(t.Context(), "/"), "visit homepage")
	return p
}

func waitForBreeds(t *T, p *driver.Session) {
	require.NoError(t, p.Get(dogapp.TestIDBreedSelector).ShouldHaveOptionCount(t.Context(), driver.MoreThan(1)))
}

func clickFetch(t *T, p *driver.Session) {
	require.NoError(t, p.Click(t.Context(), dogapp.TestIDFetchButton))
}

func selectBreed(t *T, p *driver.Session, breed string) {
	require.NoError(t, p.SelectOption(t.Context(), dogapp.TestIDBreedSelector, breed))
}

// requireImage 等待图片可见，srcContains 非空时同时检查 src
func requireImage(t *T, p *driver.Session, srcContains string) {
	img := p.Get(dogapp.TestIDImage, driver.WithTimeout(t.Params().ImageTimeout))
	require.NoError(t, img.ShouldBeVisible(t.Context()))
	if srcContains != "" {
		require.NoError(t, img.ShouldHaveAttrContaining(t.Context(), "src", srcContains))
	}
}

func requireNoError(t *T, p *driver.Session) {
	require.NoError(t, p.Get(dogapp.TestIDError).ShouldNotExist(t.Context()))
}

func dogStub(imageURL string) *routespec.ResponseSpec {
	return &routespec.ResponseSpec{StatusCode: 200, Body: json.RawMessage(dogapp.DogBody(imageURL))}
}
