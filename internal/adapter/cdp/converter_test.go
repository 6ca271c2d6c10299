package cdp

import (
	"encoding/json"
	"testing"

	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/stretchr/testify/assert"

	"cdpharness/pkg/traffic"
)

func TestToNeutralRequest(t *testing.T) {
	body := `{"a":1}`
	ev := &fetch.RequestPausedReply{
		RequestID: "interception-job-1.0",
		Request: network.Request{
			URL:      "http://LocalHost:3000/api/dogs?breed=husky&breed=beagle",
			Method:   "POST",
			Headers:  network.Headers(json.RawMessage(`{"Content-Type":"application/json","Cookie":"a=1; b=2"}`)),
			PostData: &body,
		},
		ResourceType: network.ResourceTypeFetch,
	}

	req := ToNeutralRequest(ev)
	assert.Equal(t, "interception-job-1.0", req.ID)
	assert.Equal(t, "http", req.Scheme)
	assert.Equal(t, "localhost:3000", req.Host)
	assert.Equal(t, "/api/dogs", req.Path)
	assert.Equal(t, "husky", req.Query["breed"])
	assert.Equal(t, "application/json", req.Headers.Get("content-type"))
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, req.Cookies)
	assert.Equal(t, body, string(req.Body))
	assert.Equal(t, "Fetch", req.ResourceType)
}

func TestToNeutralResponse(t *testing.T) {
	code := 404
	ev := &fetch.RequestPausedReply{
		ResponseStatusCode: &code,
		ResponseHeaders:    []fetch.HeaderEntry{{Name: "Content-Type", Value: "text/plain"}},
	}
	res := ToNeutralResponse(ev, []byte("missing"))
	assert.Equal(t, 404, res.StatusCode)
	assert.Equal(t, "text/plain", res.Headers.Get("content-type"))
	assert.Equal(t, "missing", string(res.Body))
}

func TestToFulfillArgs(t *testing.T) {
	res := traffic.NewResponse()
	res.StatusCode = 500
	res.Headers.Set("X-B", "2")
	res.Headers.Set("X-A", "1")
	res.Body = []byte("boom")

	args := ToFulfillArgs("id-1", res)
	assert.Equal(t, fetch.RequestID("id-1"), args.RequestID)
	assert.Equal(t, 500, args.ResponseCode)
	assert.Equal(t, "Internal Server Error", *args.ResponsePhrase)
	assert.Equal(t, []fetch.HeaderEntry{{Name: "x-a", Value: "1"}, {Name: "x-b", Value: "2"}}, args.ResponseHeaders)
	assert.Equal(t, []byte("boom"), args.Body)
}

func TestInfoSnapshotsAreCopies(t *testing.T) {
	req := traffic.NewRequest()
	req.Headers.Set("Accept", "application/json")
	info := ToRequestInfo(req)
	req.Headers.Set("Accept", "text/html")
	assert.Equal(t, "application/json", info.Headers["accept"])

	assert.Empty(t, ToResponseInfo(nil).Headers)
}
