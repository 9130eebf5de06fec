package document

import (
	"bytes"
	"encoding/json"
)

// Document is one converted source. It is not mutated after creation.
type Document struct {
	ID             string
	SourceFilename string
	Text           string       // Markdown/plain text as produced by the converter
	Assets         []MediaAsset // Extracted media in extraction order
}

// MediaAsset is an extracted image referenced from the text.
type MediaAsset struct {
	ID           string
	RelativePath string
	SourceOffset *int    // Rune offset into the chunked text; nil when unanchored
	Caption      *string // nil when the converter had no caption
	Data         []byte  // Raw bytes when the converter extracted them; never serialized
}

// Anchored reports whether the asset has a resolved offset.
func (a MediaAsset) Anchored() bool {
	return a.SourceOffset != nil
}

// Clone returns a deep copy so callers can resolve offsets without touching the original.
func (a MediaAsset) Clone() MediaAsset {
	out := a
	if a.SourceOffset != nil {
		v := *a.SourceOffset
		out.SourceOffset = &v
	}
	if a.Caption != nil {
		v := *a.Caption
		out.Caption = &v
	}
	return out
}

// Chunk is a contiguous slice of the chunked text. Offsets are rune positions,
// end exclusive, and always refer to the unfiltered text.
type Chunk struct {
	Index            int    `json:"index"`
	Text             string `json:"text"`
	StartOffset      int    `json:"start_offset"`
	EndOffset        int    `json:"end_offset"`
	OverlapPrevChars int    `json:"overlap_prev_chars"`
	Title            string `json:"title"`    // heading in effect, or the first line
	IsTitle          bool   `json:"is_title"` // chunk opens with a heading
}

// BlockType discriminates content blocks in the merged output.
type BlockType string

const (
	BlockChunk BlockType = "chunk"
	BlockImage BlockType = "image"
)

// ContentBlock is either a chunk or an asset, ranked by Order.
type ContentBlock struct {
	Type  BlockType
	Order int
	Chunk *Chunk
	Asset *MediaAsset
}

// Offset is the block's position in the text. Unanchored assets report -1.
func (b ContentBlock) Offset() int {
	switch {
	case b.Chunk != nil:
		return b.Chunk.StartOffset
	case b.Asset != nil && b.Asset.SourceOffset != nil:
		return *b.Asset.SourceOffset
	}
	return -1
}

type chunkBlockJSON struct {
	Type             BlockType `json:"type"`
	Order            int       `json:"order"`
	Index            int       `json:"index"`
	Text             string    `json:"text"`
	StartOffset      int       `json:"start_offset"`
	EndOffset        int       `json:"end_offset"`
	OverlapPrevChars int       `json:"overlap_prev_chars"`
	Title            string    `json:"title"`
	IsTitle          bool      `json:"is_title"`
}

type imageBlockJSON struct {
	Type         BlockType `json:"type"`
	Order        int       `json:"order"`
	ID           string    `json:"id"`
	Path         string    `json:"path"`
	SourceOffset *int      `json:"source_offset"`
	Caption      *string   `json:"caption"`
}

// MarshalJSON writes the block with a fixed field order per type.
func (b ContentBlock) MarshalJSON() ([]byte, error) {
	if b.Type == BlockImage && b.Asset != nil {
		return marshalRaw(imageBlockJSON{
			Type:         BlockImage,
			Order:        b.Order,
			ID:           b.Asset.ID,
			Path:         b.Asset.RelativePath,
			SourceOffset: b.Asset.SourceOffset,
			Caption:      b.Asset.Caption,
		})
	}
	var c Chunk
	if b.Chunk != nil {
		c = *b.Chunk
	}
	return marshalRaw(chunkBlockJSON{
		Type:             BlockChunk,
		Order:            b.Order,
		Index:            c.Index,
		Text:             c.Text,
		StartOffset:      c.StartOffset,
		EndOffset:        c.EndOffset,
		OverlapPrevChars: c.OverlapPrevChars,
		Title:            c.Title,
		IsTitle:          c.IsTitle,
	})
}

// marshalRaw encodes v without HTML escaping so text survives verbatim.
func marshalRaw(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// MergedDocument is the ordered interleaving of chunks and assets for one document.
type MergedDocument struct {
	DocumentID     string         `json:"document_id"`
	SourceFilename string         `json:"source_filename"`
	BlockCount     int            `json:"block_count"`
	Blocks         []ContentBlock `json:"blocks"`
	IndexBlocks    []Chunk        `json:"index_blocks,omitempty"`
}

// Unanchored counts image blocks without an offset.
func (m *MergedDocument) Unanchored() int {
	n := 0
	for _, b := range m.Blocks {
		if b.Asset != nil && b.Asset.SourceOffset == nil {
			n++
		}
	}
	return n
}
