// Package record parses the per-record XML descriptor found inside a
// document dataset: title, record type and the ordered field list.
package record

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Kind is the target entity family a record maps to.
type Kind string

const (
	// KindExperiment is a regular entry ("NORMAL").
	KindExperiment Kind = "experiments"
	// KindTemplate is an entry template ("NORMAL:TEMPLATE").
	KindTemplate Kind = "experiments_templates"
)

// Record type values understood by the importer.
const (
	TypeNormal   = "NORMAL"
	TypeTemplate = "NORMAL:TEMPLATE"
)

// BodyFieldName is the field holding the main text. Its label is
// suppressed and its HTML is processed for equations and images.
const BodyFieldName = "Data"

type Record struct {
	Title  string  `xml:"name"`
	Type   string  `xml:"type"`
	Fields []Field `xml:"listFields>field"`
}

type Field struct {
	Name   string  `xml:"fieldName"`
	Data   string  `xml:"fieldData"`
	Images []Image `xml:"imageList>image"`
}

// Image is an embedded image reference of a field: a path relative to
// the crate, the original filename and a caption.
type Image struct {
	LinkFile    string `xml:"linkFile"`
	Name        string `xml:"name"`
	Description string `xml:"description"`
}

// UnknownTypeError marks a record whose type value is not recognized.
// The caller skips such records with a warning instead of failing.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("could not figure out the entity type for: %s", e.Type)
}

// Parse reads and decodes the XML descriptor at path.
func Parse(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read record descriptor: %w", err)
	}

	var rec Record
	if err := xml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse record descriptor: %w", err)
	}

	return &rec, nil
}

// Kind maps the record type to the entity kind it creates. An
// unrecognized type returns an UnknownTypeError.
func (r *Record) Kind() (Kind, error) {
	switch r.Type {
	case TypeNormal:
		return KindExperiment, nil
	case TypeTemplate:
		return KindTemplate, nil
	default:
		return "", &UnknownTypeError{Type: r.Type}
	}
}

// BodyField returns the primary body field, if the record has one.
func (r *Record) BodyField() (Field, bool) {
	for _, f := range r.Fields {
		if f.Name == BodyFieldName {
			return f, true
		}
	}
	return Field{}, false
}

// SourcePath resolves the image's link against the archive root. The
// exporter writes links relative to the dataset folder with a leading
// "../" segment.
func (i Image) SourcePath(root string) string {
	return filepath.Join(root, strings.TrimPrefix(i.LinkFile, "../"))
}
