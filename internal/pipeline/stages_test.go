package pipeline

import (
	"strings"
	"testing"

	"github.com/dgallion1/docslice/internal/chunker"
	"github.com/dgallion1/docslice/internal/convert"
)

func TestPrepare_SpacedFilenameAnchorsEmbeddedImage(t *testing.T) {
	input := "# T\n\nbefore ![fig](data:image/png;base64,iVBORw0KGgo=) after\n"
	for _, name := range []string{"report.md", "my report.md"} {
		conv, err := convert.Convert(name, []byte(input))
		if err != nil {
			t.Fatalf("%s: convert: %v", name, err)
		}
		prep, err := Prepare(name, conv, chunker.DefaultConfig())
		if err != nil {
			t.Fatalf("%s: prepare: %v", name, err)
		}
		if len(prep.Misses) != 0 {
			t.Errorf("%s: misses = %v", name, prep.Misses)
		}
		if want := "# T\n\nbefore  after\n"; prep.Document.Text != want {
			t.Errorf("%s: text = %q, want %q", name, prep.Document.Text, want)
		}
		for _, b := range prep.Merged.Blocks {
			if b.Chunk != nil && strings.Contains(b.Chunk.Text, "![") {
				t.Errorf("%s: marker leaked into chunk %q", name, b.Chunk.Text)
			}
		}
		if a := prep.Document.Assets[0]; a.SourceOffset == nil || *a.SourceOffset != 12 {
			t.Errorf("%s: offset = %v, want 12", name, a.SourceOffset)
		}
	}
}
