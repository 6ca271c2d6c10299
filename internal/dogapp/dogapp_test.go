package dogapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestBreedLabel(t *testing.T) {
	assert.Equal(t, "Husky", BreedLabel("husky"))
	assert.Equal(t, "", BreedLabel(""))
	assert.True(t, IsCapitalized(BreedLabel("beagle")))
	assert.False(t, IsCapitalized("beagle"))
}

func TestDogsQuery(t *testing.T) {
	assert.Equal(t, "/api/dogs", DogsQuery(""))
	assert.Equal(t, "/api/dogs?breed=husky", DogsQuery("husky"))
}

func TestDogBodyRoundTrip(t *testing.T) {
	body := DogBody("https://example.com/dog.jpg")
	assert.Equal(t, "success", gjson.GetBytes(body, "status").String())

	dog, err := ParseDogResponse(body)
	require.NoError(t, err)
	assert.False(t, dog.IsList)
	assert.Equal(t, []string{"https://example.com/dog.jpg"}, dog.Images)
}

func TestDogListBody(t *testing.T) {
	dog, err := ParseDogResponse(DogListBody("a.jpg", "b.jpg"))
	require.NoError(t, err)
	assert.True(t, dog.IsList)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, dog.Images)
}

func TestParseDogResponseRejectsMalformed(t *testing.T) {
	for name, body := range map[string]string{
		"not json":        `not json`,
		"missing message": `{"status":"success"}`,
		"numeric message": `{"status":"success","message":3}`,
		"mixed array":     `{"status":"success","message":["a",1]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDogResponse([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestBreedsBody(t *testing.T) {
	body := BreedsBody(map[string][]string{"hound": {"afghan"}, "akita": nil})
	breeds, err := ParseBreedsResponse(body)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, breeds.Status)
	assert.Equal(t, []string{"akita", "hound"}, breeds.Names())
	assert.Equal(t, []string{"afghan"}, breeds.Breeds["hound"])
	assert.True(t, gjson.GetBytes(body, "message.akita").IsArray())
}

func TestAPICheckerRandomDog(t *testing.T) {
	handler, requests := httphelpers.RecordingHandler(
		httphelpers.HandlerWithResponse(200, http.Header{"Content-Type": {"application/json"}}, DogBody(ImageURL("husky", "n01.jpg"))),
	)
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		c := NewAPIChecker(server.URL + "/")
		dog, res, err := c.RandomDog(context.Background(), "husky")
		require.NoError(t, err)
		assert.True(t, res.IsJSON())
		assert.Contains(t, dog.Images[0], "husky")

		r := <-requests
		assert.Equal(t, DogsPath, r.Request.URL.Path)
		assert.Equal(t, "husky", r.Request.URL.Query().Get(BreedParam))
		assert.Equal(t, "application/json", r.Request.Header.Get("Accept"))
	})
}

func TestAPICheckerBreeds(t *testing.T) {
	body := BreedsBody(map[string][]string{"beagle": nil, "husky": nil})
	handler := httphelpers.HandlerWithResponse(200, http.Header{"Content-Type": {"application/json"}}, body)
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		breeds, _, err := NewAPIChecker(server.URL).Breeds(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"beagle", "husky"}, breeds.Names())
	})
}

func TestAPICheckerUnexpectedStatus(t *testing.T) {
	httphelpers.WithServer(httphelpers.HandlerWithStatus(500), func(server *httptest.Server) {
		_, res, err := NewAPIChecker(server.URL).RandomDog(context.Background(), "")
		require.Error(t, err)
		assert.Equal(t, 500, res.StatusCode)
	})
}

func TestAPICheckerContextCancel(t *testing.T) {
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	httphelpers.WithServer(slow, func(server *httptest.Server) {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := NewAPIChecker(server.URL).Get(ctx, DogsPath, nil)
		assert.Error(t, err)
	})
}
