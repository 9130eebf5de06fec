package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocal_PutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}

	if err := store.Put(ctx, "task/doc/result.json", strings.NewReader(`{"a":1}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put(ctx, "task/doc/result.json", strings.NewReader(`{"a":2}`)); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}

	rc, err := store.Get(ctx, "task/doc/result.json")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != `{"a":2}` {
		t.Errorf("got %q", data)
	}

	entries, _ := os.ReadDir(filepath.Join(store.Root(), "task", "doc"))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestLocal_GetMissing(t *testing.T) {
	store, _ := NewLocal(t.TempDir())
	_, err := store.Get(context.Background(), "nope/result.json")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Delete(context.Background(), "nope/result.json"); err != nil {
		t.Errorf("Delete of missing key should succeed: %v", err)
	}
}

func TestLocal_RejectsEscapingKeys(t *testing.T) {
	store, _ := NewLocal(t.TempDir())
	for _, key := range []string{"", ".", "..", "../outside", "a/../../b", "/etc/passwd"} {
		if err := store.Put(context.Background(), key, strings.NewReader("x")); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Put(%q) = %v, want ErrInvalidKey", key, err)
		}
	}
}

func TestLocal_DeletePrefix(t *testing.T) {
	ctx := context.Background()
	store, _ := NewLocal(t.TempDir())
	for _, key := range []string{"t1/a/result.json", "t1/b/images/x.png", "t2/a/result.json"} {
		if err := store.Put(ctx, key, strings.NewReader("x")); err != nil {
			t.Fatalf("Put %s: %v", key, err)
		}
	}
	if err := store.DeletePrefix(ctx, TaskPrefix("t1")); err != nil {
		t.Fatalf("DeletePrefix: %v", err)
	}
	if _, err := store.Get(ctx, "t1/a/result.json"); !errors.Is(err, ErrNotFound) {
		t.Errorf("t1 artifact survived: %v", err)
	}
	if _, err := store.Get(ctx, "t2/a/result.json"); err != nil {
		t.Errorf("t2 artifact removed: %v", err)
	}
}

func TestLocal_PutHonorsCancellation(t *testing.T) {
	store, _ := NewLocal(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.Put(ctx, "k", strings.NewReader("x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLayout(t *testing.T) {
	if got := ResultKey("t", "doc"); got != "t/doc/result.json" {
		t.Errorf("ResultKey = %q", got)
	}
	if got := AssetKey("t", "doc", "../images/a.png"); got != "t/doc/images/a.png" {
		t.Errorf("AssetKey = %q", got)
	}
	tests := map[string]string{
		"report.pdf":         "report",
		"dir/sub/notes.md":   "notes",
		`C:\docs\paper.docx`: "paper",
		"年度报告.md":            "年度报告",
		"weird:na*me?.txt":   "weird_na_me_",
		".md":                "md",
		"...":                "document",
	}
	for in, want := range tests {
		if got := DocumentName(in); got != want {
			t.Errorf("DocumentName(%q) = %q, want %q", in, got, want)
		}
	}
}
