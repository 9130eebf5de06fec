// Package merge interleaves chunks and anchored media into one ordered,
// serializable document.
package merge

import (
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/dgallion1/docslice/internal/document"
)

// ErrInconsistent marks chunk or asset data that violates the coverage
// and ordering rules. It is fatal for the document.
var ErrInconsistent = errors.New("merge inconsistency")

// InconsistencyError carries the reason for ErrInconsistent.
type InconsistencyError struct {
	DocumentID string
	Reason     string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("merge inconsistency in %s: %s", e.DocumentID, e.Reason)
}

func (e *InconsistencyError) Unwrap() error { return ErrInconsistent }

// Input is everything the merger needs for one document.
type Input struct {
	DocumentID     string
	SourceFilename string
	TextLen        int // rune length of the chunked text
	Chunks         []document.Chunk
	IndexChunks    []document.Chunk
	Assets         []document.MediaAsset
}

type entry struct {
	block    document.ContentBlock
	anchored bool
	offset   int
	kind     int // 0 chunk, 1 asset
	seq      int
}

// Merge orders chunks and assets by offset. On equal offsets a chunk comes
// before an asset, then lower sequence index first. Unanchored assets go
// last in extraction order.
func Merge(in Input) (*document.MergedDocument, error) {
	if err := checkCoverage(in.DocumentID, "chunks", in.TextLen, in.Chunks); err != nil {
		return nil, err
	}
	if err := checkCoverage(in.DocumentID, "index_blocks", in.TextLen, in.IndexChunks); err != nil {
		return nil, err
	}

	entries := make([]entry, 0, len(in.Chunks)+len(in.Assets))
	for i := range in.Chunks {
		c := in.Chunks[i]
		entries = append(entries, entry{
			block:    document.ContentBlock{Type: document.BlockChunk, Chunk: &c},
			anchored: true,
			offset:   c.StartOffset,
			seq:      i,
		})
	}
	for i, a := range in.Assets {
		a := a.Clone()
		a.Data = nil
		e := entry{
			block: document.ContentBlock{Type: document.BlockImage, Asset: &a},
			kind:  1,
			seq:   i,
		}
		if a.SourceOffset != nil {
			off := *a.SourceOffset
			if off < 0 || off > in.TextLen {
				return nil, &InconsistencyError{
					DocumentID: in.DocumentID,
					Reason:     fmt.Sprintf("asset %s offset %d outside [0,%d]", a.ID, off, in.TextLen),
				}
			}
			e.anchored, e.offset = true, off
		}
		entries = append(entries, e)
	}

	slices.SortStableFunc(entries, func(a, b entry) int {
		if a.anchored != b.anchored {
			if a.anchored {
				return -1
			}
			return 1
		}
		if !a.anchored {
			return cmp.Compare(a.seq, b.seq)
		}
		return cmp.Or(
			cmp.Compare(a.offset, b.offset),
			cmp.Compare(a.kind, b.kind),
			cmp.Compare(a.seq, b.seq),
		)
	})

	out := &document.MergedDocument{
		DocumentID:     in.DocumentID,
		SourceFilename: in.SourceFilename,
		Blocks:         make([]document.ContentBlock, len(entries)),
		IndexBlocks:    in.IndexChunks,
	}
	for i, e := range entries {
		e.block.Order = i
		out.Blocks[i] = e.block
	}
	out.BlockCount = len(out.Blocks)
	return out, nil
}

func checkCoverage(docID, what string, textLen int, chunks []document.Chunk) error {
	fail := func(format string, args ...any) error {
		return &InconsistencyError{DocumentID: docID, Reason: what + ": " + fmt.Sprintf(format, args...)}
	}
	if len(chunks) == 0 {
		if textLen > 0 && what == "chunks" {
			return fail("no chunks for %d characters of text", textLen)
		}
		return nil
	}
	if textLen == 0 {
		return fail("chunks present for empty text")
	}
	if chunks[0].StartOffset != 0 {
		return fail("first chunk starts at %d", chunks[0].StartOffset)
	}
	for i, c := range chunks {
		if c.Index != i {
			return fail("chunk %d has index %d", i, c.Index)
		}
		if c.StartOffset >= c.EndOffset || c.EndOffset > textLen {
			return fail("chunk %d has bad range [%d,%d)", i, c.StartOffset, c.EndOffset)
		}
		if i > 0 {
			prev := chunks[i-1]
			if c.StartOffset > prev.EndOffset {
				return fail("gap between chunk %d and %d", i-1, i)
			}
			if c.StartOffset <= prev.StartOffset || c.EndOffset <= prev.EndOffset {
				return fail("chunk %d does not advance", i)
			}
		}
	}
	if last := chunks[len(chunks)-1].EndOffset; last != textLen {
		return fail("last chunk ends at %d, text has %d", last, textLen)
	}
	return nil
}

// Marshal renders the result artifact: two-space indented JSON with a fixed
// key order and a trailing newline. Equal inputs give identical bytes.
func Marshal(doc *document.MergedDocument) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("marshal %s: %w", doc.DocumentID, err)
	}
	return buf.Bytes(), nil
}
