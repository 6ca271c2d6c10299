package routespec

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdpharness/pkg/model"
	"cdpharness/pkg/traffic"
)

func request(t *testing.T, method, raw string) *traffic.Request {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	req := traffic.NewRequest()
	req.Method = method
	req.URL = raw
	req.Scheme = u.Scheme
	req.Host = u.Host
	req.Path = u.Path
	for k, vs := range u.Query() {
		req.Query[k] = vs[0]
	}
	return req
}

func TestParsePatternRejects(t *testing.T) {
	for name, raw := range map[string]string{
		"empty":          "",
		"relative":       "api/dogs",
		"fragment":       "/api/dogs#top",
		"scheme":         "ftp://example.com/api",
		"missing host":   "http:///api/dogs",
		"inner wildcard": "/api/*/dogs",
		"repeated key":   "/api/dogs?breed=a&breed=b",
		"empty key":      "/api/dogs?=husky",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePattern(raw)
			require.Error(t, err)
			var cerr *model.ConfigurationError
			assert.True(t, errors.As(err, &cerr))
		})
	}
}

func TestPatternMatchPath(t *testing.T) {
	p, err := ParsePattern("/api/dogs")
	require.NoError(t, err)

	assert.True(t, p.Match(request(t, "GET", "http://localhost:3000/api/dogs")))
	assert.True(t, p.Match(request(t, "GET", "http://localhost:3000/api/dogs?breed=husky")))
	assert.False(t, p.Match(request(t, "GET", "http://localhost:3000/api/dogs/breeds")))
}

func TestPatternMatchQuerySubset(t *testing.T) {
	p, err := ParsePattern("/api/dogs?breed=husky")
	require.NoError(t, err)

	assert.True(t, p.Match(request(t, "GET", "http://localhost:3000/api/dogs?breed=husky")))
	assert.True(t, p.Match(request(t, "GET", "http://localhost:3000/api/dogs?size=big&breed=husky")))
	assert.False(t, p.Match(request(t, "GET", "http://localhost:3000/api/dogs?breed=beagle")))
	assert.False(t, p.Match(request(t, "GET", "http://localhost:3000/api/dogs")))
}

func TestPatternMatchPrefix(t *testing.T) {
	p, err := ParsePattern("/api/*")
	require.NoError(t, err)

	assert.True(t, p.Prefix)
	assert.True(t, p.Match(request(t, "GET", "http://localhost:3000/api/dogs/breeds")))
	assert.False(t, p.Match(request(t, "GET", "http://localhost:3000/static/app.js")))
}

func TestPatternMatchFullURL(t *testing.T) {
	p, err := ParsePattern("https://Images.Dog.Ceo/breeds/*")
	require.NoError(t, err)

	assert.True(t, p.Match(request(t, "GET", "https://images.dog.ceo/breeds/husky/1.jpg")))
	assert.False(t, p.Match(request(t, "GET", "http://images.dog.ceo/breeds/husky/1.jpg")))
	assert.False(t, p.Match(request(t, "GET", "https://localhost/breeds/husky/1.jpg")))
}

func TestPatternString(t *testing.T) {
	p, err := ParsePattern("/api/dogs?size=big&breed=husky")
	require.NoError(t, err)
	assert.Equal(t, "/api/dogs?breed=husky&size=big", p.String())

	p, err = ParsePattern("http://LOCALHOST:3000/api/*")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000/api/*", p.String())
}
