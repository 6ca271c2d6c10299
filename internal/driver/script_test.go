package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptRoundTrip(t *testing.T) {
	name, args := parseScript(selectScript("breed-selector", `hus"ky`))
	assert.Equal(t, scriptSelect, name)
	assert.Equal(t, "breed-selector", args.Get("id").String())
	assert.Equal(t, `hus"ky`, args.Get("value").String())

	name, _ = parseScript("document.title")
	assert.Empty(t, name)
}

func TestParseState(t *testing.T) {
	st, err := parseState([]byte(`{
		"exists": true, "tag": "select", "text": "", "attrs": {"data-testid": "breed-selector"},
		"disabled": false, "hidden": false, "width": 120, "height": 24, "x": 60, "y": 100,
		"value": "husky",
		"options": [{"value": "", "text": "All Breeds (Random)"}, {"value": "husky", "text": "Husky", "selected": true}]
	}`))
	require.NoError(t, err)
	assert.True(t, st.Visible())
	assert.True(t, st.HasValue)
	assert.Equal(t, "husky", st.Value)
	require.Len(t, st.Options, 2)
	assert.True(t, st.Options[1].Selected)
	v, ok := st.Attr("data-testid")
	assert.True(t, ok)
	assert.Equal(t, "breed-selector", v)

	_, err = parseState([]byte(`not json`))
	assert.Error(t, err)
}

func TestVisibility(t *testing.T) {
	cases := map[string]struct {
		st   ElementState
		want bool
	}{
		"missing":   {ElementState{}, false},
		"hidden":    {ElementState{Exists: true, Hidden: true, Width: 10, Height: 10}, false},
		"zero size": {ElementState{Exists: true, Width: 0, Height: 10}, false},
		"visible":   {ElementState{Exists: true, Width: 10, Height: 10}, true},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, c.want, c.st.Visible())
			ok, _ := visible(c.st)
			assert.Equal(t, c.want, ok)
		})
	}
}

func TestCount(t *testing.T) {
	assert.True(t, Exactly(2).holds(2))
	assert.False(t, Exactly(2).holds(3))
	assert.True(t, MoreThan(1).holds(2))
	assert.False(t, MoreThan(1).holds(1))
	assert.Equal(t, "more than 1", MoreThan(1).String())
}
