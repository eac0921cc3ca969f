package storage

import (
	"fmt"
	"strings"
)

var allowedContentTypes = map[string]bool{
	"application/json":     true,
	"application/x-ndjson": true,
	"text/csv":             true,
}

// ValidateContentType checks if the content type may be archived.
func ValidateContentType(contentType string) error {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if !allowedContentTypes[ct] {
		return fmt.Errorf("content type %q is not allowed", contentType)
	}
	return nil
}

// ValidateObjectKey rejects empty keys, absolute keys and parent traversal.
func ValidateObjectKey(key string) error {
	switch {
	case strings.TrimSpace(key) == "":
		return fmt.Errorf("object key is empty")
	case strings.HasPrefix(key, "/"):
		return fmt.Errorf("object key %q must be relative", key)
	case strings.Contains(key, ".."):
		return fmt.Errorf("object key %q must not contain '..'", key)
	}
	return nil
}

// SnapshotKey is the archive key of a daily snapshot.
func SnapshotKey(day string) string {
	return fmt.Sprintf("snapshots/%s/%s.json", strings.ReplaceAll(day[:min(len(day), 7)], "-", "/"), day)
}
