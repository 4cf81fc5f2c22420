package models

import (
	"path/filepath"
	"strings"
)

// Document is the binary file a user picked for extraction.
type Document struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the document length in bytes.
func (d Document) Size() int64 {
	return int64(len(d.Data))
}

// Extension returns the lower-cased file extension including the dot.
func (d Document) Extension() string {
	return strings.ToLower(filepath.Ext(d.Name))
}
