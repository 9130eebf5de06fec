package convert

import (
	"io"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docslice/internal/document"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownConverter passes markdown through and collects image references
// with goldmark. Embedded data: images are decoded into assets and their
// markers rewritten to point at the extracted file.
type MarkdownConverter struct{}

func (c *MarkdownConverter) Convert(r io.Reader, filename string) (*Result, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(raw) {
		return nil, errInvalidUTF8
	}
	out := normalizeNewlines(string(raw))
	src := []byte(out)

	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var assets []document.MediaAsset
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		img, ok := n.(*ast.Image)
		if !ok {
			return ast.WalkContinue, nil
		}
		seq := len(assets) + 1
		dest := string(img.Destination)
		asset := document.MediaAsset{ID: assetID(seq), RelativePath: dest}

		if strings.HasPrefix(dest, "data:") {
			data, ext, err := decodeDataURI(dest)
			if err != nil {
				// Undecodable payloads stay as text; the marker will not anchor.
				return ast.WalkSkipChildren, nil
			}
			asset.RelativePath = dataAssetPath(filename, seq, ext)
			asset.Data = data
			if strings.Contains(out, "(<"+dest+">") {
				out = strings.Replace(out, "(<"+dest+">", "("+asset.RelativePath, 1)
			} else {
				out = strings.Replace(out, "("+dest, "("+asset.RelativePath, 1)
			}
		}
		assets = append(assets, asset)
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return nil, err
	}
	return &Result{Text: out, Assets: assets}, nil
}
