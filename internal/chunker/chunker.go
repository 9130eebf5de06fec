package chunker

import (
	"sort"
	"strings"
	"unicode"

	"github.com/dgallion1/docslice/internal/document"
)

// Chunk splits text into an ordered, gap-free sequence of chunks of at most
// cfg.ChunkSize kept characters. Empty text yields no chunks.
func Chunk(text string, cfg Config) ([]document.Chunk, error) {
	p, err := cfg.compile(cfg.ChunkSize)
	if err != nil {
		return nil, err
	}
	return p.split(text), nil
}

// ChunkIndex produces the secondary sequence at cfg.IndexSize granularity.
// It returns nil when no index is requested.
func ChunkIndex(text string, cfg Config) ([]document.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.IndexEnabled() {
		return nil, nil
	}
	p, err := cfg.compile(cfg.IndexSize)
	if err != nil {
		return nil, err
	}
	return p.split(text), nil
}

func (p *plan) split(text string) []document.Chunk {
	if text == "" {
		return nil
	}
	s := p.scan(text)
	n := len(s.runes)

	var chunks []document.Chunk
	cursor, prevEnd := 0, 0
	for cursor < n {
		limit := s.advance(cursor, p.size)
		end := limit
		if limit < n {
			end = s.cut(max(cursor, prevEnd), limit)
		}

		overlap := 0
		if len(chunks) > 0 && prevEnd > cursor {
			overlap = prevEnd - cursor
		}
		chunks = append(chunks, document.Chunk{
			Index:            len(chunks),
			Text:             s.kept(cursor, end),
			StartOffset:      cursor,
			EndOffset:        end,
			OverlapPrevChars: overlap,
		})
		if end >= n {
			break
		}

		next := s.retreat(end, p.overlap, cursor)
		if next <= cursor {
			next = cursor + 1
		}
		prevEnd = end
		cursor = next
	}
	label(chunks, s.headings())
	return chunks
}

// scanner holds the per-text state: runes, filtered ranges and boundaries.
type scanner struct {
	runes    []rune
	excluded []bool // nil when no filter matched
	keep     []int  // keep[i] = kept runes in runes[:i]
	bounds   []int  // sorted, unique boundary candidates
}

func (p *plan) scan(text string) *scanner {
	runes := []rune(text)
	n := len(runes)

	// byte offset -> rune offset, valid at rune starts and at len(text)
	pos := make([]int, len(text)+1)
	r := 0
	for i := range text {
		pos[i] = r
		r++
	}
	pos[len(text)] = n

	s := &scanner{runes: runes, keep: make([]int, n+1)}

	for _, re := range p.filters {
		for _, m := range re.FindAllStringIndex(text, -1) {
			if m[0] == m[1] {
				continue
			}
			if s.excluded == nil {
				s.excluded = make([]bool, n)
			}
			for i := pos[m[0]]; i < pos[m[1]]; i++ {
				s.excluded[i] = true
			}
		}
	}
	for i := 0; i < n; i++ {
		s.keep[i+1] = s.keep[i]
		if s.excluded == nil || !s.excluded[i] {
			s.keep[i+1]++
		}
	}

	seen := make(map[int]bool)
	add := func(b int) {
		if b > 0 && b < n && !seen[b] {
			seen[b] = true
			s.bounds = append(s.bounds, b)
		}
	}
	for _, flag := range p.flags {
		for off := 0; off < len(text); {
			i := strings.Index(text[off:], flag)
			if i < 0 {
				break
			}
			add(pos[off+i])
			off += i + len(flag)
		}
	}
	for _, re := range p.flagRe {
		for _, m := range re.FindAllStringIndex(text, -1) {
			if p.mode == SplitBefore || p.mode == SplitAround {
				add(pos[m[0]])
			}
			if p.mode == SplitAfter || p.mode == SplitAround {
				add(pos[m[1]])
			}
		}
	}
	sort.Ints(s.bounds)
	return s
}

// advance returns the first position where size kept runes have been
// consumed from cursor, or len(runes) when the rest fits.
func (s *scanner) advance(cursor, size int) int {
	n := len(s.runes)
	target := s.keep[cursor] + size
	i := sort.Search(n-cursor, func(i int) bool {
		return s.keep[cursor+1+i] >= target
	})
	if i == n-cursor {
		return n
	}
	return cursor + 1 + i
}

// cut picks the end of a chunk in (lo, limit]: the last explicit boundary,
// else the last whitespace boundary, else limit itself.
func (s *scanner) cut(lo, limit int) int {
	if i := sort.SearchInts(s.bounds, limit+1); i > 0 {
		if b := s.bounds[i-1]; b > lo {
			return b
		}
	}
	for q := limit; q > lo; q-- {
		if unicode.IsSpace(s.runes[q-1]) || unicode.IsSpace(s.runes[q]) {
			return q
		}
	}
	return limit
}

// retreat steps back from end over n kept runes, never past floor.
func (s *scanner) retreat(end, n, floor int) int {
	p := end
	for counted := 0; p > floor && counted < n; {
		p--
		if s.excluded == nil || !s.excluded[p] {
			counted++
		}
	}
	return p
}

func (s *scanner) kept(start, end int) string {
	if s.excluded == nil {
		return string(s.runes[start:end])
	}
	var b strings.Builder
	for i := start; i < end; i++ {
		if !s.excluded[i] {
			b.WriteRune(s.runes[i])
		}
	}
	return b.String()
}
