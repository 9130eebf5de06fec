package media

import (
	"testing"

	"github.com/dgallion1/docslice/internal/document"
)

func TestAnchor_StripsMarkersAndResolvesOffsets(t *testing.T) {
	text := "前言\n![图一](images/a.png)正文段落\n![](./images/b.png \"title\")结尾"
	assets := []document.MediaAsset{
		{ID: "img-001", RelativePath: "images/a.png"},
		{ID: "img-002", RelativePath: "images/b.png"},
	}

	res := Anchor(assets, text)

	wantText := "前言\n正文段落\n结尾"
	if res.Text != wantText {
		t.Fatalf("cleaned text = %q, want %q", res.Text, wantText)
	}
	if len(res.Misses) != 0 {
		t.Errorf("unexpected misses: %v", res.Misses)
	}
	if got := res.Assets[0].SourceOffset; got == nil || *got != 3 {
		t.Errorf("asset 0 offset = %v, want 3", got)
	}
	if got := res.Assets[1].SourceOffset; got == nil || *got != 8 {
		t.Errorf("asset 1 offset = %v, want 8", got)
	}
	if c := res.Assets[0].Caption; c == nil || *c != "图一" {
		t.Errorf("asset 0 caption = %v, want 图一", c)
	}
	if res.Assets[1].Caption != nil {
		t.Errorf("asset 1 caption should stay nil for empty alt text")
	}
	if assets[0].SourceOffset != nil {
		t.Error("input assets must not be mutated")
	}
}

func TestAnchor_MissingMarkerIsReportedNotFatal(t *testing.T) {
	text := "intro ![x](one.png) outro"
	assets := []document.MediaAsset{
		{ID: "a", RelativePath: "one.png"},
		{ID: "b", RelativePath: "two.png"},
	}

	res := Anchor(assets, text)

	if res.Assets[0].SourceOffset == nil || *res.Assets[0].SourceOffset != 6 {
		t.Errorf("asset a offset = %v, want 6", res.Assets[0].SourceOffset)
	}
	if res.Assets[1].SourceOffset != nil {
		t.Errorf("asset b should be unanchored")
	}
	if len(res.Misses) != 1 || res.Misses[0].AssetID != "b" {
		t.Fatalf("misses = %v, want one for b", res.Misses)
	}
}

func TestAnchor_DuplicatePathsBindInOrder(t *testing.T) {
	text := "![](same.png)abc![](same.png)"
	assets := []document.MediaAsset{
		{ID: "first", RelativePath: "same.png"},
		{ID: "second", RelativePath: "same.png"},
	}

	res := Anchor(assets, text)

	if res.Text != "abc" {
		t.Fatalf("cleaned text = %q", res.Text)
	}
	if *res.Assets[0].SourceOffset != 0 || *res.Assets[1].SourceOffset != 3 {
		t.Errorf("offsets = %d, %d; want 0, 3", *res.Assets[0].SourceOffset, *res.Assets[1].SourceOffset)
	}
}

func TestAnchor_UnknownMarkerStaysInText(t *testing.T) {
	text := "see ![logo](https://example.com/logo.png) here"
	res := Anchor(nil, text)
	if res.Text != text {
		t.Errorf("text changed: %q", res.Text)
	}
	if len(res.Assets) != 0 || len(res.Misses) != 0 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestAnchor_AngleBracketPathWithSpaces(t *testing.T) {
	text := "a ![my fig](<images/my img.png>) b"
	res := Anchor([]document.MediaAsset{{ID: "img-001", RelativePath: "images/my img.png"}}, text)
	if res.Text != "a  b" {
		t.Fatalf("cleaned text = %q", res.Text)
	}
	if got := res.Assets[0].SourceOffset; got == nil || *got != 2 {
		t.Errorf("offset = %v, want 2", got)
	}
	if len(res.Misses) != 0 {
		t.Errorf("unexpected misses: %v", res.Misses)
	}
}

func TestAnchor_NestedBracketsInAlt(t *testing.T) {
	text := "x![chart [2024] q1](c.png)y"
	res := Anchor([]document.MediaAsset{{ID: "img-001", RelativePath: "c.png"}}, text)
	if res.Text != "xy" {
		t.Fatalf("cleaned text = %q", res.Text)
	}
	if c := res.Assets[0].Caption; c == nil || *c != "chart [2024] q1" {
		t.Errorf("caption = %v", c)
	}
}
