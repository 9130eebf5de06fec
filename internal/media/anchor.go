// Package media resolves where extracted images sit in a document's text.
package media

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docslice/internal/document"
)

// markerRe matches a markdown image marker: ![alt](path "optional title").
// Alt text may hold one level of balanced brackets. The destination is either
// <angle bracketed>, which allows spaces, or a bare run without spaces.
var markerRe = regexp.MustCompile(`!\[((?:[^\[\]]|\[[^\[\]]*\])*)\]\(\s*(?:<([^<>\n]+)>|([^)\s<>]+))(?:\s+"[^"]*")?\s*\)`)

// Miss records an asset whose marker was not found in the text.
type Miss struct {
	AssetID string
	Path    string
}

func (m Miss) Error() string {
	return fmt.Sprintf("no marker for asset %s (%s)", m.AssetID, m.Path)
}

// Result is the outcome of anchoring.
type Result struct {
	Assets []document.MediaAsset // copies of the input, offsets resolved
	Text   string                // text with matched markers stripped
	Misses []Miss
}

// Anchor scans text once for image markers and binds each one to the first
// not-yet-anchored asset with the same path. Matched markers are removed and
// the asset's offset is the marker's rune position in the returned text.
// Markers without an asset are left in place.
func Anchor(assets []document.MediaAsset, text string) Result {
	out := make([]document.MediaAsset, len(assets))
	pending := make(map[string][]int, len(assets))
	for i, a := range assets {
		out[i] = a.Clone()
		out[i].SourceOffset = nil
		key := normalize(a.RelativePath)
		pending[key] = append(pending[key], i)
	}

	var b strings.Builder
	b.Grow(len(text))
	last, runes := 0, 0
	for _, m := range markerRe.FindAllStringSubmatchIndex(text, -1) {
		dest := text[m[6]:m[7]]
		if m[4] >= 0 {
			dest = text[m[4]:m[5]]
		}
		key := normalize(dest)
		queue := pending[key]
		if len(queue) == 0 {
			continue
		}
		idx := queue[0]
		pending[key] = queue[1:]

		b.WriteString(text[last:m[0]])
		runes += utf8.RuneCountInString(text[last:m[0]])
		off := runes
		out[idx].SourceOffset = &off
		if alt := strings.TrimSpace(text[m[2]:m[3]]); out[idx].Caption == nil && alt != "" {
			out[idx].Caption = &alt
		}
		last = m[1]
	}
	b.WriteString(text[last:])

	res := Result{Assets: out, Text: b.String()}
	for _, a := range out {
		if a.SourceOffset == nil {
			res.Misses = append(res.Misses, Miss{AssetID: a.ID, Path: a.RelativePath})
		}
	}
	return res
}

func normalize(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return p
	}
	return strings.TrimPrefix(path.Clean(p), "./")
}
