package document

import (
	"fmt"
	"regexp"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// MaxTextSize is the maximum document text size in bytes.
const MaxTextSize = 4 << 20 // 4MB

// Document is a source text with subject/unit tags (immutable value object).
type Document struct {
	id      string
	text    string
	source  string
	subject string
	unit    string
}

// New validates and creates a Document.
// ID: ^[a-zA-Z0-9_.-]+$, 1-128 chars. Text: non-empty, max 4MB.
func New(id, text, source, subject, unit string) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("document ID is required")
	}
	if len(id) > 128 {
		return Document{}, fmt.Errorf("document ID too long (max 128)")
	}
	if !idRegex.MatchString(id) {
		return Document{}, fmt.Errorf("document ID must be alphanumeric with dots, underscores and hyphens")
	}
	if text == "" {
		return Document{}, fmt.Errorf("text is required")
	}
	if len(text) > MaxTextSize {
		return Document{}, fmt.Errorf("text too large (max %d bytes)", MaxTextSize)
	}

	return Document{id: id, text: text, source: source, subject: subject, unit: unit}, nil
}

// ID returns the document identifier.
func (d Document) ID() string { return d.id }

// Text returns the raw document text.
func (d Document) Text() string { return d.text }

// Source returns the origin identifier (file name, URL).
func (d Document) Source() string { return d.source }

// Subject returns the subject tag.
func (d Document) Subject() string { return d.subject }

// Unit returns the unit tag.
func (d Document) Unit() string { return d.unit }
