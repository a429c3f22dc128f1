// Package importer drives the migration pipeline: extract the archive,
// walk the crate's document datasets and turn each record descriptor
// into an eLabFTW entry with its attachments and composed body.
package importer

import (
	"context"
	"strings"

	"github.com/mrlokans/eln-import/internal/archive"
	"github.com/mrlokans/eln-import/internal/crate"
	"github.com/mrlokans/eln-import/internal/elabftw"
	"github.com/mrlokans/eln-import/internal/logging"
	"github.com/mrlokans/eln-import/internal/record"
	"github.com/mrlokans/eln-import/internal/transform"
)

// ProvenanceTag is added to every created entry on top of the tags
// carried by the source dataset.
const ProvenanceTag = "imported from rspace"

// xmlUploadComment annotates the record descriptor uploaded alongside
// the entry.
const xmlUploadComment = "XML data from Rspace"

// Importer runs the pipeline against an injected API client.
type Importer struct {
	api elabftw.API
	log *logging.Logger
}

func New(api elabftw.API, log *logging.Logger) *Importer {
	return &Importer{api: api, log: log}
}

// Run imports all records of the .eln archive at inputPath. Archive and
// crate failures abort the run; per-record failures are logged and the
// run continues with the next record.
func (imp *Importer) Run(ctx context.Context, inputPath string) error {
	imp.log.Debug("====================== Starting import ======================")

	extracted, err := archive.Extract(inputPath)
	if err != nil {
		return err
	}
	defer extracted.Close()

	imp.log.Debug("extracted archive", "path", extracted.TempDir)
	imp.log.Debug("crate root", "path", extracted.Root)

	c, err := crate.Load(extracted.Root)
	if err != nil {
		return err
	}

	for _, dataset := range c.DocumentDatasets() {
		imp.log.Debug("processing dataset", "id", dataset.ID)

		for _, part := range dataset.Parts() {
			if err := ctx.Err(); err != nil {
				return err
			}
			// Form definitions sit next to the record descriptor and are
			// excluded by their filename suffix.
			if !strings.HasSuffix(part.ID, ".xml") || strings.HasSuffix(part.ID, "_form.xml") {
				continue
			}
			imp.log.Debug("found XML file to read and import", "id", part.ID)
			imp.importRecord(ctx, dataset, part, c.Root)
		}
	}

	return nil
}

// importRecord handles one descriptor. Every failure in here is scoped
// to the record: it is logged and the caller moves on.
func (imp *Importer) importRecord(ctx context.Context, dataset crate.Dataset, part crate.Part, root string) {
	rec, err := record.Parse(part.Path())
	if err != nil {
		imp.log.Error("could not parse record descriptor", "id", part.ID, "error", err)
		return
	}

	kind, err := rec.Kind()
	if err != nil {
		imp.log.Warn("WARNING: " + err.Error())
		return
	}

	tags := append(dataset.Keywords(), ProvenanceTag)

	imp.log.Info("creating entry", "title", rec.Title)
	entityID, err := imp.api.CreateEntity(ctx, kind, rec.Title, tags)
	if err != nil {
		imp.log.Error("could not create entity", "error", err)
		return
	}
	imp.log.Debug("created entity", "type", rec.Type, "id", entityID)

	// Images go up first: composing the body needs the storage name the
	// server assigned to each of them.
	uploads := make(map[string]string)
	if bodyField, ok := rec.BodyField(); ok {
		for _, img := range bodyField.Images {
			longName, err := imp.api.UploadFile(ctx, kind, entityID, img.SourcePath(root), img.Description)
			if err != nil {
				imp.log.Error("could not upload image", "file", img.Name, "error", err)
				continue
			}
			imp.log.Debug("uploaded image", "file", img.Name, "storage_name", longName)
			uploads[img.Name] = longName
		}
	}

	for _, field := range rec.Fields {
		imp.log.Debug("processing field", "name", field.Name, "bytes", len(field.Data), "images", len(field.Images))
	}

	body, err := transform.ComposeBody(rec.Fields, uploads)
	if err != nil {
		imp.log.Error("could not compose body", "id", entityID, "error", err)
		return
	}

	if err := imp.api.UpdateBody(ctx, kind, entityID, body); err != nil {
		imp.log.Error("could not update body", "id", entityID, "error", err)
		return
	}

	if _, err := imp.api.UploadFile(ctx, kind, entityID, part.Path(), xmlUploadComment); err != nil {
		imp.log.Error("could not upload record descriptor", "id", entityID, "error", err)
	}
}
