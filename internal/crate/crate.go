// Package crate reads the RO-Crate metadata graph of an extracted .eln
// archive and selects the datasets describing importable documents.
package crate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MetadataFile is the well-known name of the crate metadata document.
const MetadataFile = "ro-crate-metadata.json"

// documentPrefix marks dataset identifiers that describe an importable
// document (as opposed to folders, forms or other entities).
const documentPrefix = "doc_"

// Crate is a parsed RO-Crate metadata graph.
type Crate struct {
	// Root is the crate root directory on disk. Part identifiers are
	// resolved relative to it.
	Root string

	byID  map[string]node
	order []string
}

// node is one entry of the @graph array. JSON-LD allows most values to
// be either a scalar or an array, so entries stay loosely typed and are
// read through accessor helpers.
type node map[string]interface{}

// Dataset is a data entity of type Dataset whose identifier marks it as
// an importable document.
type Dataset struct {
	ID string

	crate *Crate
	raw   node
}

// Part is one constituent file of a dataset.
type Part struct {
	ID string

	root string
}

// Load parses the metadata document found under root.
func Load(root string) (*Crate, error) {
	data, err := os.ReadFile(filepath.Join(root, MetadataFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read crate metadata: %w", err)
	}

	var doc struct {
		Graph []node `json:"@graph"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse crate metadata: %w", err)
	}

	c := &Crate{Root: root, byID: make(map[string]node, len(doc.Graph))}
	for _, n := range doc.Graph {
		id := n.str("@id")
		if id == "" {
			continue
		}
		if _, seen := c.byID[id]; !seen {
			c.order = append(c.order, id)
		}
		c.byID[id] = n
	}

	return c, nil
}

// DocumentDatasets returns the data entities selected for import:
// entities of type Dataset with a doc_ identifier prefix, in graph
// order. No matches is an empty slice, not an error.
func (c *Crate) DocumentDatasets() []Dataset {
	var datasets []Dataset
	for _, id := range c.order {
		n := c.byID[id]
		if !n.hasType("Dataset") {
			continue
		}
		if !strings.HasPrefix(strings.TrimPrefix(id, "./"), documentPrefix) {
			continue
		}
		datasets = append(datasets, Dataset{ID: id, crate: c, raw: n})
	}
	return datasets
}

// Keywords returns the dataset's tags. The exporter writes them either
// as an array or as one comma-separated string.
func (d Dataset) Keywords() []string {
	switch v := d.raw["keywords"].(type) {
	case string:
		var keywords []string
		for _, kw := range strings.Split(v, ",") {
			if kw = strings.TrimSpace(kw); kw != "" {
				keywords = append(keywords, kw)
			}
		}
		return keywords
	case []interface{}:
		var keywords []string
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				keywords = append(keywords, s)
			}
		}
		return keywords
	default:
		return nil
	}
}

// Parts dereferences the dataset's hasPart list in declared order.
func (d Dataset) Parts() []Part {
	refs, ok := d.raw["hasPart"].([]interface{})
	if !ok {
		return nil
	}

	var parts []Part
	for _, ref := range refs {
		var id string
		switch v := ref.(type) {
		case map[string]interface{}:
			id, _ = v["@id"].(string)
		case string:
			id = v
		}
		if id == "" {
			continue
		}
		parts = append(parts, Part{ID: id, root: d.crate.Root})
	}
	return parts
}

// Path resolves the part identifier to its file below the crate root.
func (p Part) Path() string {
	return filepath.Join(p.root, strings.TrimPrefix(p.ID, "./"))
}

func (n node) str(key string) string {
	s, _ := n[key].(string)
	return s
}

// hasType reports whether the node's @type, scalar or array, contains
// the given type name.
func (n node) hasType(name string) bool {
	switch v := n["@type"].(type) {
	case string:
		return v == name
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok && s == name {
				return true
			}
		}
	}
	return false
}
