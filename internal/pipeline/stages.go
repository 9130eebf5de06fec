package pipeline

import (
	"fmt"
	"unicode/utf8"

	"github.com/dgallion1/docslice/internal/chunker"
	"github.com/dgallion1/docslice/internal/convert"
	"github.com/dgallion1/docslice/internal/document"
	"github.com/dgallion1/docslice/internal/media"
	"github.com/dgallion1/docslice/internal/merge"
)

// Prepared is one document after the pure stages, ready to persist.
type Prepared struct {
	Document document.Document // anchored assets and cleaned text
	Merged   *document.MergedDocument
	Misses   []media.Miss
	Body     []byte // serialized result artifact
}

// Prepare runs anchor, chunk, merge and serialize over converter output.
// It performs no I/O, so equal inputs give byte-identical bodies.
func Prepare(filename string, conv *convert.Result, cfg chunker.Config) (*Prepared, error) {
	anchored := media.Anchor(conv.Assets, conv.Text)
	doc := document.Document{
		ID:             DocumentID(conv.Text),
		SourceFilename: filename,
		Text:           anchored.Text,
		Assets:         anchored.Assets,
	}

	chunks, err := chunker.Chunk(doc.Text, cfg)
	if err != nil {
		return nil, err
	}
	indexChunks, err := chunker.ChunkIndex(doc.Text, cfg)
	if err != nil {
		return nil, err
	}

	merged, err := merge.Merge(merge.Input{
		DocumentID:     doc.ID,
		SourceFilename: filename,
		TextLen:        utf8.RuneCountInString(doc.Text),
		Chunks:         chunks,
		IndexChunks:    indexChunks,
		Assets:         doc.Assets,
	})
	if err != nil {
		return nil, err
	}
	body, err := merge.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("serialize %s: %w", filename, err)
	}
	return &Prepared{Document: doc, Merged: merged, Misses: anchored.Misses, Body: body}, nil
}

// ChunkCount is the number of chunk blocks in the merged document.
func (p *Prepared) ChunkCount() int {
	n := 0
	for _, b := range p.Merged.Blocks {
		if b.Type == document.BlockChunk {
			n++
		}
	}
	return n
}
