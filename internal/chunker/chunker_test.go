package chunker

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dgallion1/docslice/internal/document"
)

// checkCoverage asserts the sequence starts at 0, ends at n, has no gaps,
// and strictly advances.
func checkCoverage(t *testing.T, chunks []document.Chunk, n int) {
	t.Helper()
	if n == 0 {
		if len(chunks) != 0 {
			t.Fatalf("expected no chunks for empty text, got %d", len(chunks))
		}
		return
	}
	if len(chunks) == 0 {
		t.Fatal("expected chunks, got none")
	}
	if chunks[0].StartOffset != 0 {
		t.Errorf("first chunk starts at %d, want 0", chunks[0].StartOffset)
	}
	if last := chunks[len(chunks)-1].EndOffset; last != n {
		t.Errorf("last chunk ends at %d, want %d", last, n)
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
		if c.StartOffset >= c.EndOffset {
			t.Errorf("chunk %d is empty: [%d,%d)", i, c.StartOffset, c.EndOffset)
		}
		if i == 0 {
			continue
		}
		prev := chunks[i-1]
		if c.StartOffset > prev.EndOffset {
			t.Errorf("gap between chunk %d and %d: %d > %d", i-1, i, c.StartOffset, prev.EndOffset)
		}
		if c.StartOffset <= prev.StartOffset {
			t.Errorf("chunk %d does not advance: start %d <= %d", i, c.StartOffset, prev.StartOffset)
		}
		if c.EndOffset <= prev.EndOffset {
			t.Errorf("chunk %d does not extend coverage: end %d <= %d", i, c.EndOffset, prev.EndOffset)
		}
	}
}

func TestChunk_EmptyText(t *testing.T) {
	chunks, err := Chunk("", Config{ChunkSize: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected 0 chunks, got %d", len(chunks))
	}
}

func TestChunk_ExactSizeSingleChunk(t *testing.T) {
	text := strings.Repeat("a", 100)
	chunks, err := Chunk(text, Config{ChunkSize: 100, Overlap: 0.2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if c.StartOffset != 0 || c.EndOffset != 100 || c.OverlapPrevChars != 0 {
		t.Errorf("unexpected chunk bounds: %+v", c)
	}
	if c.Text != text {
		t.Errorf("chunk text differs from input")
	}
}

func TestChunk_EndToEndOverlap(t *testing.T) {
	// 1200 runes of short words so whitespace boundaries are always near.
	text := strings.Repeat("abcd ", 240)
	if len(text) != 1200 {
		t.Fatalf("fixture length %d", len(text))
	}

	chunks, err := Chunk(text, Config{ChunkSize: 500, Overlap: 0.1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checkCoverage(t, chunks, 1200)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d: %+v", len(chunks), chunks)
	}

	want := [][2]int{{0, 500}, {450, 950}, {900, 1200}}
	for i, c := range chunks {
		if abs(c.StartOffset-want[i][0]) > 20 || abs(c.EndOffset-want[i][1]) > 20 {
			t.Errorf("chunk %d = [%d,%d), want about [%d,%d)", i, c.StartOffset, c.EndOffset, want[i][0], want[i][1])
		}
	}
	if chunks[0].OverlapPrevChars != 0 {
		t.Errorf("first chunk overlap = %d, want 0", chunks[0].OverlapPrevChars)
	}
	for i := 1; i < len(chunks); i++ {
		if got := chunks[i].OverlapPrevChars; got != 50 {
			t.Errorf("chunk %d overlap = %d, want 50", i, got)
		}
	}
}

func TestChunk_OverlapTextRepeatsPreviousTail(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet ", 40)
	chunks, err := Chunk(text, Config{ChunkSize: 120, Overlap: 0.25})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checkCoverage(t, chunks, utf8.RuneCountInString(text))
	for i := 1; i < len(chunks); i++ {
		ov := chunks[i].OverlapPrevChars
		if ov != chunks[i-1].EndOffset-chunks[i].StartOffset {
			t.Fatalf("chunk %d overlap %d disagrees with offsets", i, ov)
		}
		prev := []rune(chunks[i-1].Text)
		cur := []rune(chunks[i].Text)
		if string(prev[len(prev)-ov:]) != string(cur[:ov]) {
			t.Errorf("chunk %d does not start with the previous tail", i)
		}
	}
}

func TestChunk_SizeNeverExceeded(t *testing.T) {
	text := strings.Repeat("x", 1000) + " " + strings.Repeat("y", 333)
	for _, size := range []int{1, 7, 64, 500, 2000} {
		for _, ov := range []float64{0, 0.1, 0.5, 0.99} {
			t.Run(fmt.Sprintf("size=%d/overlap=%v", size, ov), func(t *testing.T) {
				chunks, err := Chunk(text, Config{ChunkSize: size, Overlap: ov})
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				checkCoverage(t, chunks, utf8.RuneCountInString(text))
				for _, c := range chunks {
					if n := utf8.RuneCountInString(c.Text); n > size {
						t.Fatalf("chunk %d has %d runes, limit %d", c.Index, n, size)
					}
				}
			})
		}
	}
}

func TestChunk_RuneOffsets(t *testing.T) {
	text := strings.Repeat("文档切分测试。", 30) // 210 runes, 630 bytes
	chunks, err := Chunk(text, Config{ChunkSize: 50, SplitFlag: []string{"。"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checkCoverage(t, chunks, 210)
	runes := []rune(text)
	for _, c := range chunks {
		if c.Text != string(runes[c.StartOffset:c.EndOffset]) {
			t.Errorf("chunk %d text does not match its rune offsets", c.Index)
		}
	}
}

func TestChunk_SplitFlagPreferredOverWhitespace(t *testing.T) {
	text := "alpha beta gamma\n\ndelta epsilon zeta eta theta"
	chunks, err := Chunk(text, Config{ChunkSize: 30, SplitFlag: []string{"\n\n"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checkCoverage(t, chunks, len(text))
	if chunks[0].EndOffset != 16 {
		t.Fatalf("first cut at %d, want 16 (before the delimiter)", chunks[0].EndOffset)
	}
	if !strings.HasPrefix(chunks[1].Text, "\n\ndelta") {
		t.Errorf("second chunk should begin with the delimiter, got %q", chunks[1].Text)
	}
}

func TestChunk_HardCutWithoutBoundaries(t *testing.T) {
	text := strings.Repeat("z", 25)
	chunks, err := Chunk(text, Config{ChunkSize: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := [][2]int{}
	for _, c := range chunks {
		got = append(got, [2]int{c.StartOffset, c.EndOffset})
	}
	want := [][2]int{{0, 10}, {10, 20}, {20, 25}}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestChunk_RegexModes(t *testing.T) {
	text := "one. two. three"
	tests := []struct {
		mode ReMode
		end  int
	}{
		{SplitBefore, 8},
		{SplitAfter, 9},
		{SplitAround, 9},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("mode=%d", tt.mode), func(t *testing.T) {
			chunks, err := Chunk(text, Config{ChunkSize: 9, SplitFlag: []string{`\.`}, ReFlags: true, ReMode: tt.mode})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			checkCoverage(t, chunks, len(text))
			if chunks[0].EndOffset != tt.end {
				t.Errorf("first cut at %d, want %d", chunks[0].EndOffset, tt.end)
			}
		})
	}
}

func TestChunk_FiltersExcludedFromTextAndSize(t *testing.T) {
	text := "aaaa<!--drop-->bbbb cccc"
	chunks, err := Chunk(text, Config{ChunkSize: 100, Filters: []string{`<!--.*?-->`}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "aaaabbbb cccc" {
		t.Errorf("filtered text = %q", chunks[0].Text)
	}
	if chunks[0].EndOffset != len(text) {
		t.Errorf("offsets must stay in unfiltered coordinates: end %d, want %d", chunks[0].EndOffset, len(text))
	}

	// Only 8 kept runes fit, so the first chunk spans the filtered range.
	chunks, err = Chunk(text, Config{ChunkSize: 8, Filters: []string{`<!--.*?-->`}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checkCoverage(t, chunks, len(text))
	if chunks[0].Text != "aaaabbbb" {
		t.Errorf("first chunk text = %q, want %q", chunks[0].Text, "aaaabbbb")
	}
}

func TestChunk_Deterministic(t *testing.T) {
	text := strings.Repeat("The quick brown fox.\n\n# Heading\nbody text ", 50)
	cfg := DefaultConfig()
	a, err := Chunk(text, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _ := Chunk(text, cfg)
	if fmt.Sprint(a) != fmt.Sprint(b) {
		t.Error("chunking is not deterministic")
	}
}

func TestChunkIndex(t *testing.T) {
	text := strings.Repeat("word ", 100)

	idx, err := ChunkIndex(text, Config{ChunkSize: 100})
	if err != nil || idx != nil {
		t.Fatalf("index disabled: got %v, %v", idx, err)
	}
	idx, err = ChunkIndex(text, Config{ChunkSize: 100, IndexSize: 100})
	if err != nil || idx != nil {
		t.Fatalf("index equal to chunk size: got %v, %v", idx, err)
	}

	idx, err = ChunkIndex(text, Config{ChunkSize: 100, IndexSize: 40})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checkCoverage(t, idx, len(text))
	for _, c := range idx {
		if len(c.Text) > 40 {
			t.Errorf("index chunk %d too long: %d", c.Index, len(c.Text))
		}
	}
}

func TestChunk_ConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"zero size", Config{ChunkSize: 0}, "chunk_size"},
		{"negative overlap", Config{ChunkSize: 10, Overlap: -0.1}, "overlap"},
		{"overlap of one", Config{ChunkSize: 10, Overlap: 1}, "overlap"},
		{"bad filter", Config{ChunkSize: 10, Filters: []string{"("}}, "filters[0]"},
		{"bad regex flag", Config{ChunkSize: 10, SplitFlag: []string{"["}, ReFlags: true}, "split_flag[0]"},
		{"empty flag", Config{ChunkSize: 10, SplitFlag: []string{""}}, "split_flag[0]"},
		{"unknown mode", Config{ChunkSize: 10, SplitFlag: []string{"x"}, ReFlags: true, ReMode: 3}, "re_mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Chunk("some text", tt.cfg)
			var ce *ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if ce.Field != tt.field {
				t.Errorf("field = %q, want %q", ce.Field, tt.field)
			}
		})
	}

	if _, err := ChunkIndex("text", Config{ChunkSize: 10, IndexSize: -1}); err == nil {
		t.Error("expected error for negative index_size")
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("empty = %d, want 0", got)
	}
	if got := EstimateTokens("one two three"); got != 3 {
		t.Errorf("english = %d, want 3", got)
	}
	if got := EstimateTokens("文档切分"); got != 4 {
		t.Errorf("cjk = %d, want 4", got)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func TestChunk_Titles(t *testing.T) {
	text := "# Intro\nalpha beta\n## Next **step**\nfoo bar baz qux zed"
	cfg := Config{ChunkSize: 20, SplitFlag: []string{"\n#"}}
	chunks, err := Chunk(text, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}
	if c := chunks[0]; c.Title != "Intro" || !c.IsTitle {
		t.Errorf("chunk 0 title = %q/%v, want Intro/true", c.Title, c.IsTitle)
	}
	second := strings.Index(text, "## Next")
	for _, c := range chunks[1:] {
		opens := strings.HasPrefix(strings.TrimSpace(c.Text), "#")
		if c.StartOffset < second && !opens {
			continue
		}
		if c.Title != "Next step" || c.IsTitle != opens {
			t.Errorf("chunk %d %q: title = %q/%v, want %q/%v", c.Index, c.Text, c.Title, c.IsTitle, "Next step", opens)
		}
	}
	if last := chunks[len(chunks)-1]; last.IsTitle || last.Title != "Next step" {
		t.Errorf("last chunk should inherit the heading, got %q/%v", last.Title, last.IsTitle)
	}
}

func TestChunk_TitleFallsBackToFirstLine(t *testing.T) {
	text := "这是一段没有标题的很长的中文文本，用来检查标题回退到第一行并截断到三十个字符的行为是否正确。\n第二行"
	chunks, err := Chunk(text, Config{ChunkSize: 500})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := chunks[0]
	if c.IsTitle {
		t.Error("plain text chunk must not be flagged as a title")
	}
	if n := utf8.RuneCountInString(c.Title); n != maxTitleRunes {
		t.Errorf("title has %d runes, want %d: %q", n, maxTitleRunes, c.Title)
	}
	if !strings.HasPrefix(text, c.Title) {
		t.Errorf("title %q is not the start of the first line", c.Title)
	}
}

func TestCleanTitle(t *testing.T) {
	tests := map[string]string{
		"## **Bold** [link]":             "Bold link",
		"# 第一章 总则":                       "第一章 总则",
		"# Fig ![x](images/a.png) here":  "Fig here",
		"# a/b: c?":                      "a b c",
		"#":                              "",
	}
	for in, want := range tests {
		if got := cleanTitle(in); got != want {
			t.Errorf("cleanTitle(%q) = %q, want %q", in, got, want)
		}
	}
}
