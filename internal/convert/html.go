package convert

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docslice/internal/document"
	"golang.org/x/net/html"
)

// HTMLConverter renders HTML as markdown: headings become # lines, block
// elements become paragraphs and <img> tags become image markers.
type HTMLConverter struct{}

type htmlState struct {
	filename string
	paras    []string
	assets   []document.MediaAsset
}

func (c *HTMLConverter) Convert(r io.Reader, filename string) (*Result, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	st := &htmlState{filename: filename}
	root := findBody(doc)
	if root == nil {
		root = doc
	}
	st.walk(root)
	return &Result{Text: strings.Join(st.paras, "\n\n"), Assets: st.assets}, nil
}

func (st *htmlState) add(p string) {
	if p = strings.TrimSpace(p); p != "" {
		st.paras = append(st.paras, p)
	}
}

func (st *htmlState) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		if level := headingLevel(n.Data); level > 0 {
			if t := st.inline(n); t != "" {
				st.add(strings.Repeat("#", level) + " " + t)
			}
			return
		}
		switch n.Data {
		case "script", "style", "nav", "footer", "noscript", "template":
			return
		case "p", "li", "td", "th", "blockquote", "figcaption", "dt", "dd":
			st.add(st.inline(n))
			return
		case "pre":
			st.add("```\n" + strings.Trim(textContent(n), "\n") + "\n```")
			return
		case "img":
			st.add(st.image(n))
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		st.walk(c)
	}
}

// inline flattens an element's content, emitting markers for images.
func (st *htmlState) inline(n *html.Node) string {
	var b strings.Builder
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(collapseSpace(n.Data))
			return
		case n.Type == html.ElementNode && n.Data == "img":
			b.WriteString(st.image(n))
			return
		case n.Type == html.ElementNode && n.Data == "br":
			b.WriteString("\n")
			return
		case n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style"):
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return strings.TrimSpace(b.String())
}

// image registers an asset for an <img> and returns its marker.
func (st *htmlState) image(n *html.Node) string {
	src := strings.TrimSpace(attr(n, "src"))
	if src == "" {
		return ""
	}
	seq := len(st.assets) + 1
	asset := document.MediaAsset{ID: assetID(seq), RelativePath: strings.ReplaceAll(src, " ", "%20")}
	if strings.HasPrefix(src, "data:") {
		data, ext, err := decodeDataURI(src)
		if err != nil {
			return ""
		}
		asset.RelativePath = dataAssetPath(st.filename, seq, ext)
		asset.Data = data
	}
	if title := strings.TrimSpace(attr(n, "title")); title != "" {
		asset.Caption = &title
	}
	st.assets = append(st.assets, asset)

	alt := strings.NewReplacer("[", "", "]", "").Replace(collapseSpace(attr(n, "alt")))
	return fmt.Sprintf("![%s](%s)", strings.TrimSpace(alt), asset.RelativePath)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func collapseSpace(s string) string {
	if s == "" {
		return s
	}
	lead := s[0] == ' ' || s[0] == '\n' || s[0] == '\t' || s[0] == '\r'
	last := s[len(s)-1]
	trail := last == ' ' || last == '\n' || last == '\t' || last == '\r'
	out := strings.Join(strings.Fields(s), " ")
	if out == "" {
		return " "
	}
	if lead {
		out = " " + out
	}
	if trail {
		out += " "
	}
	return out
}

func headingLevel(tag string) int {
	if len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6' {
		return int(tag[1] - '0')
	}
	return 0
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return buf.String()
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
