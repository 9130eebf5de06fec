// Package convert turns uploaded files into markdown text plus the media
// assets referenced from it.
package convert

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docslice/internal/document"
)

// ErrConversionUnavailable means the file could not be turned into text:
// unsupported format, corrupt input, or a missing external tool.
var ErrConversionUnavailable = errors.New("conversion unavailable")

var errInvalidUTF8 = errors.New("input is not valid UTF-8")

// Result is the converter output for one file.
type Result struct {
	Text   string
	Assets []document.MediaAsset // extraction order
}

// Converter handles one family of file formats.
type Converter interface {
	Convert(r io.Reader, filename string) (*Result, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// Options tunes the default converter set.
type Options struct {
	PDFFallbackPdftotext bool
}

// DefaultOptions enables every fallback.
func DefaultOptions() Options {
	return Options{PDFFallbackPdftotext: true}
}

// ForFile returns the converter for a filename with default options.
func ForFile(filename string) (Converter, error) {
	return DefaultOptions().ForFile(filename)
}

// ForFile returns the converter for a filename.
func (o Options) ForFile(filename string) (Converter, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextConverter{}, nil
	case ".md", ".markdown":
		return &MarkdownConverter{}, nil
	case ".csv":
		return &CSVConverter{}, nil
	case ".html", ".htm":
		return &HTMLConverter{}, nil
	case ".pdf":
		return &PDFConverter{FallbackPdftotext: o.PDFFallbackPdftotext}, nil
	case ".docx":
		return &DOCXConverter{}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported file extension %q", ErrConversionUnavailable, ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Convert runs the default converter set.
func Convert(filename string, data []byte) (*Result, error) {
	return DefaultOptions().Convert(filename, data)
}

// Convert picks a converter by extension and runs it. Every failure wraps
// ErrConversionUnavailable.
func (o Options) Convert(filename string, data []byte) (*Result, error) {
	c, err := o.ForFile(filename)
	if err != nil {
		return nil, err
	}
	res, err := c.Convert(bytes.NewReader(data), filename)
	if err != nil {
		if errors.Is(err, ErrConversionUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrConversionUnavailable, filename, err)
	}
	return res, nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func baseName(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func assetID(seq int) string {
	return fmt.Sprintf("img-%03d", seq)
}
