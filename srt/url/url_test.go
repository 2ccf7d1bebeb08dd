package url

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamInfoString(t *testing.T) {
	require.Equal(t, "live", StreamInfo{Resource: "live", Mode: "request"}.String())
	require.Equal(t, "live,token:secret", StreamInfo{Resource: "live", Token: "secret"}.String())
	require.Equal(t, "live,token:secret,mode:publish", StreamInfo{Resource: "live", Token: "secret", Mode: "publish"}.String())

	si, err := ParseStreamId(StreamInfo{Resource: "live", Token: "secret", Mode: "publish"}.String())
	require.NoError(t, err)
	require.Equal(t, StreamInfo{Resource: "live", Token: "secret", Mode: "publish"}, si)
}

func TestParseEncodedStreamId(t *testing.T) {
	si, err := ParseStreamId(url.QueryEscape("#!:m=publish,r=123456,token=bla"))
	require.NoError(t, err)
	require.Equal(t, StreamInfo{Mode: "publish", Resource: "123456", Token: "bla"}, si)
}

func TestIsURL(t *testing.T) {
	require.True(t, IsURL("srt://127.0.0.1:9000"))
	require.False(t, IsURL("127.0.0.1:9000"))
	require.False(t, IsURL(":9000"))
}

func TestParseStreamId(t *testing.T) {
	streamids := map[string]StreamInfo{
		"":                                      {Mode: "request"},
		"bla":                                   {Mode: "request", Resource: "bla"},
		"bla,token=foobar":                      {Mode: "request", Resource: "bla,token=foobar"},
		"bla,token:foobar":                      {Mode: "request", Resource: "bla", Token: "foobar"},
		"bla,token:foobar,mode:publish":         {Mode: "publish", Resource: "bla", Token: "foobar"},
		"bla,mode:publish,token:foobar":         {Mode: "publish", Resource: "bla", Token: "foobar"},
		"#!:":                                   {Mode: "request"},
		"#!:key=value":                          {Mode: "request"},
		"#!:m=publish":                          {Mode: "publish"},
		"#!:r=123456789":                        {Mode: "request", Resource: "123456789"},
		"#!:token=foobar":                       {Mode: "request", Token: "foobar"},
		"#!:token=foo,bar":                      {Mode: "request", Token: "foo"},
		"#!:m=publish,r=123456789,token=foobar": {Mode: "publish", Resource: "123456789", Token: "foobar"},
	}

	for streamid, wantsi := range streamids {
		si, err := ParseStreamId(streamid)
		require.NoError(t, err)
		require.Equal(t, wantsi, si, streamid)
	}
}
