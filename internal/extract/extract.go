// Package extract pulls match blocks out of export documents. It does no type
// coercion: every block is a map of canonical field name to the cell text, and
// missing cells are simply absent so the normalizer can decide what to do.
package extract

import (
	"fmt"
	"iter"

	"github.com/pable/codstats/internal/ingest"
	"github.com/pable/codstats/internal/model"
)

// minKnownColumns is how many recognized columns a header needs before a
// table is treated as match data.
const minKnownColumns = 3

// Blocks is the extraction result: a lazy sequence of raw records in document
// order plus the number of blocks it will yield.
type Blocks struct {
	Seq   iter.Seq[model.RawRecord]
	Count int
}

// Extract dispatches on the document kind.
func Extract(doc ingest.Document) (Blocks, error) {
	switch doc.Kind {
	case ingest.KindHTML:
		return HTML(doc.Text)
	case ingest.KindCSV:
		return CSV(doc.Text)
	default:
		return Blocks{}, &model.UnsupportedFormatError{Kind: string(doc.Kind)}
	}
}

// mapHeader maps header labels to canonical fields ("" for unknown columns)
// and reports whether the header looks like match data.
func mapHeader(labels []string) ([]string, bool) {
	fields := make([]string, len(labels))
	known := 0
	hasTimestamp := false
	for i, l := range labels {
		f, ok := model.CanonicalField(l)
		if !ok {
			continue
		}
		fields[i] = f
		known++
		if f == model.FieldUTCTimestamp {
			hasTimestamp = true
		}
	}
	return fields, hasTimestamp && known >= minKnownColumns
}

// recordFromCells builds a raw record from positional cells. Unknown and empty
// cells are skipped; a repeated column keeps its first non-empty value.
func recordFromCells(fields, cells []string) model.RawRecord {
	rec := make(model.RawRecord, len(fields))
	for i, f := range fields {
		if f == "" || i >= len(cells) || cells[i] == "" {
			continue
		}
		if _, dup := rec[f]; dup {
			continue
		}
		rec[f] = cells[i]
	}
	return rec
}

func noRecords(kind ingest.Kind) error {
	return fmt.Errorf("extract: %w", &model.NoRecordsFoundError{Kind: string(kind)})
}
