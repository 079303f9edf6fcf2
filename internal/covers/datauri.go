package covers

import (
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
)

// ErrInvalidDataURI is returned for covers that are not a well-formed data: URI.
var ErrInvalidDataURI = errors.New("invalid data URI")

// ParseDataURI decodes a data: URI into its media type and payload.
func ParseDataURI(uri string) (mediaType string, data []byte, err error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, ErrInvalidDataURI
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrInvalidDataURI
	}

	params := strings.Split(header, ";")
	mediaType = params[0]
	isBase64 := false
	for _, p := range params[1:] {
		if p == "base64" {
			isBase64 = true
		}
	}

	if isBase64 {
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			// Some encoders drop the padding.
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		}
		if err != nil {
			return "", nil, ErrInvalidDataURI
		}
	} else {
		decoded, err := url.PathUnescape(payload)
		if err != nil {
			return "", nil, ErrInvalidDataURI
		}
		data = []byte(decoded)
	}

	if mediaType == "" {
		mediaType = "text/plain"
	}
	return mediaType, data, nil
}

// DataURI encodes data as a base64 data: URI.
func DataURI(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
