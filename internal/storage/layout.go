package storage

import (
	"path"
	"strconv"
	"strings"
	"unicode"
)

const (
	// IndexKey is the global task index at the store root.
	IndexKey = "index.json"
	// ResultFile is the per-document artifact name.
	ResultFile = "result.json"
)

// TaskPrefix is the namespace holding everything a task wrote.
func TaskPrefix(taskID string) string {
	return taskID + "/"
}

// ResultKey is where a document's merged result lives.
func ResultKey(taskID, docName string) string {
	return path.Join(taskID, docName, ResultFile)
}

// AssetKey places an extracted asset next to its document's result.
func AssetKey(taskID, docName, relPath string) string {
	return path.Join(taskID, docName, path.Clean("/" + relPath)[1:])
}

// UploadPrefix holds the raw uploads of a task queued for another process.
func UploadPrefix(taskID string) string {
	return "uploads/" + taskID + "/"
}

// UploadKey stores the n-th upload of a task, keeping its original name.
func UploadKey(taskID string, n int, filename string) string {
	return path.Join("uploads", taskID, strconv.Itoa(n), path.Base(strings.ReplaceAll(filename, "\\", "/")))
}

// DocumentName derives a directory-safe name from an uploaded filename:
// the base name without extension, with separators and control runes replaced.
func DocumentName(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	name := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || strings.ContainsRune(`/\:*?"<>|`, r) {
			return '_'
		}
		return r
	}, base)
	name = strings.Trim(name, ". ")
	if name == "" {
		return "document"
	}
	return name
}
