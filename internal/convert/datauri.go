package convert

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

var errBadDataURI = errors.New("malformed data uri")

// decodeDataURI returns the payload of a data: URI and a file extension
// for its media type.
func decodeDataURI(uri string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", errBadDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", errBadDataURI
	}

	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}

	var data []byte
	var err error
	if isBase64 {
		payload = strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
				return -1
			}
			return r
		}, payload)
		data, err = base64.StdEncoding.DecodeString(payload)
		if err != nil {
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		}
	} else {
		var s string
		s, err = url.PathUnescape(payload)
		data = []byte(s)
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", errBadDataURI, err)
	}
	return data, imageExt(mediaType), nil
}

func imageExt(mediaType string) string {
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case "image/png":
		return "png"
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "image/svg+xml":
		return "svg"
	case "image/bmp":
		return "bmp"
	}
	return "bin"
}

// dataAssetPath names an embedded image extracted from filename. The name
// must survive as a bare markdown destination, so it holds no spaces.
func dataAssetPath(filename string, seq int, ext string) string {
	return fmt.Sprintf("images/%s_image_%03d.%s", slug(baseName(filename)), seq, ext)
}

// slug replaces whitespace and characters that break markdown links or paths.
func slug(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsControl(r) || strings.ContainsRune(`()[]<>"'/\:*?|#%`, r) {
			return '_'
		}
		return r
	}, s)
	if strings.Trim(s, "_.") == "" {
		return "document"
	}
	return s
}
