package extract

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pable/codstats/internal/ingest"
	"github.com/pable/codstats/internal/model"
)

// CSV reads the flat "example data" layout: a header row naming the fields
// followed by one match per line. Extra columns are ignored.
func CSV(text string) (Blocks, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return Blocks{}, noRecords(ingest.KindCSV)
	}
	if err != nil {
		return Blocks{}, fmt.Errorf("read csv header: %w", err)
	}
	fields, ok := mapHeader(header)
	if !ok {
		return Blocks{}, noRecords(ingest.KindCSV)
	}

	var rows [][]string
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Blocks{}, fmt.Errorf("read csv: %w", err)
		}
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
		}
		if allEmpty(row) {
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return Blocks{}, noRecords(ingest.KindCSV)
	}

	return Blocks{
		Count: len(rows),
		Seq: func(yield func(model.RawRecord) bool) {
			for _, row := range rows {
				if !yield(recordFromCells(fields, row)) {
					return
				}
			}
		},
	}, nil
}
