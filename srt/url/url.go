// Package url handles SRT addresses and the streamid conventions used to
// address a resource on a listener.
package url

import (
	neturl "net/url"
	"strings"
)

// IsURL returns whether address looks like an SRT URL (srt://host:port?options)
// rather than a plain host:port address.
func IsURL(address string) bool {
	return strings.HasPrefix(address, "srt://")
}

// StreamInfo is the content of a streamid.
type StreamInfo struct {
	Mode     string
	Resource string
	Token    string
}

// String returns the streamid in the simplified format.
func (si StreamInfo) String() string {
	parts := []string{si.Resource}

	if len(si.Token) != 0 {
		parts = append(parts, "token:"+si.Token)
	}

	if len(si.Mode) != 0 && si.Mode != "request" {
		parts = append(parts, "mode:"+si.Mode)
	}

	return strings.Join(parts, ",")
}

const accessControlPrefix = "#!:"

// ParseStreamId parses a streamid, which may be URL encoded. Two formats are
// understood, the one from the SRT access control guidelines
//
//	#!:m=publish,r=resource,token=abc
//
// and the simplified format
//
//	resource[,token:{token}][,mode:(publish|request)]
//
// The mode defaults to "request".
func ParseStreamId(streamid string) (StreamInfo, error) {
	if decoded, err := neturl.QueryUnescape(streamid); err == nil {
		streamid = decoded
	}

	if rest, ok := strings.CutPrefix(streamid, accessControlPrefix); ok {
		return parsePairs(rest, "=", map[string]string{"m": "mode", "r": "resource", "token": "token"}), nil
	}

	resource, rest := streamid, ""
	for _, key := range []string{",token:", ",mode:"} {
		if i := strings.Index(resource, key); i >= 0 {
			resource, rest = streamid[:i], streamid[i:]
		}
	}

	si := parsePairs(rest, ":", map[string]string{"mode": "mode", "token": "token"})
	si.Resource = resource

	return si, nil
}

// parsePairs reads comma separated key/value pairs. keys maps the keys to the
// StreamInfo field they fill, unknown keys are ignored.
func parsePairs(s, sep string, keys map[string]string) StreamInfo {
	si := StreamInfo{Mode: "request"}

	for _, pair := range strings.Split(s, ",") {
		key, value, found := strings.Cut(pair, sep)
		if !found {
			continue
		}

		switch keys[key] {
		case "mode":
			si.Mode = value
		case "resource":
			si.Resource = value
		case "token":
			si.Token = value
		}
	}

	return si
}
