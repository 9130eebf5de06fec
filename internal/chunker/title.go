package chunker

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docslice/internal/document"
)

const maxTitleRunes = 30

var (
	headingRe = regexp.MustCompile(`^\s{0,3}#{1,6}\s+\S`)
	// titleNoise is markup and characters unfit for a label.
	titleNoise = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)|data:image/[a-z+.-]+;base64\S*|[#*\[\]<>:"/\\|?\x00-\x1f]`)
)

type heading struct {
	offset int
	title  string
}

// headings lists the markdown heading lines of the scanned text that are not
// filtered out, in offset order.
func (s *scanner) headings() []heading {
	var out []heading
	n := len(s.runes)
	for start := 0; start < n; {
		end := start
		for end < n && s.runes[end] != '\n' {
			end++
		}
		if s.excluded == nil || !s.excluded[start] {
			if line := string(s.runes[start:end]); headingRe.MatchString(line) {
				if t := cleanTitle(line); t != "" {
					out = append(out, heading{offset: start, title: t})
				}
			}
		}
		start = end + 1
	}
	return out
}

// label sets Title and IsTitle. A chunk opening with a heading is titled by
// it; otherwise it inherits the nearest heading before it, and without one
// it falls back to its own first line.
func label(chunks []document.Chunk, hs []heading) {
	for i := range chunks {
		c := &chunks[i]
		first := firstLine(c.Text)
		if headingRe.MatchString(first) {
			if t := cleanTitle(first); t != "" {
				c.Title, c.IsTitle = t, true
				continue
			}
		}
		if k := sort.Search(len(hs), func(k int) bool { return hs[k].offset > c.StartOffset }); k > 0 {
			c.Title = hs[k-1].title
			continue
		}
		c.Title = cleanTitle(first)
	}
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}

// cleanTitle strips markup and caps the result at maxTitleRunes.
func cleanTitle(line string) string {
	t := strings.Join(strings.Fields(titleNoise.ReplaceAllString(line, " ")), " ")
	if utf8.RuneCountInString(t) > maxTitleRunes {
		t = strings.TrimSpace(string([]rune(t)[:maxTitleRunes]))
	}
	return t
}
