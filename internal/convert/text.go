package convert

import (
	"io"
	"unicode/utf8"
)

// TextConverter passes plain text through with normalized line endings.
type TextConverter struct{}

func (c *TextConverter) Convert(r io.Reader, filename string) (*Result, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(src) {
		return nil, errInvalidUTF8
	}
	return &Result{Text: normalizeNewlines(string(src))}, nil
}
