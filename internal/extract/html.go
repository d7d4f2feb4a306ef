package extract

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/pable/codstats/internal/ingest"
	"github.com/pable/codstats/internal/model"
)

// headerSearchRows bounds how far into a table we look for the header row;
// exports sometimes put a caption-like row above it.
const headerSearchRows = 3

// source is one located block, materialized lazily.
type source struct {
	fields []string   // canonical field per column for row tables
	row    *html.Node // <tr> of a row table
	table  *html.Node // whole <table> for key/value layout
}

func (s source) record() model.RawRecord {
	if s.table != nil {
		return keyValueRecord(s.table)
	}
	return recordFromCells(s.fields, cellTexts(s.row))
}

// HTML locates match blocks in an export page. Two layouts are understood:
// a table whose header row names the fields (one block per data row, columns
// in any order) and a two-column key/value table (one block per table). All
// other markup is ignored.
func HTML(text string) (Blocks, error) {
	doc, err := html.Parse(strings.NewReader(text))
	if err != nil {
		return Blocks{}, fmt.Errorf("parse html: %w", err)
	}

	var sources []source
	for _, table := range findTables(doc) {
		sources = append(sources, tableSources(table)...)
	}
	if len(sources) == 0 {
		return Blocks{}, noRecords(ingest.KindHTML)
	}

	return Blocks{
		Count: len(sources),
		Seq: func(yield func(model.RawRecord) bool) {
			for _, s := range sources {
				if !yield(s.record()) {
					return
				}
			}
		},
	}, nil
}

func tableSources(table *html.Node) []source {
	rows := tableRows(table)

	for i := 0; i < len(rows) && i < headerSearchRows; i++ {
		fields, ok := mapHeader(cellTexts(rows[i]))
		if !ok {
			continue
		}
		var out []source
		for _, r := range rows[i+1:] {
			cells := cellTexts(r)
			if allEmpty(cells) {
				continue
			}
			// Long exports repeat the header row every so often.
			if _, again := mapHeader(cells); again {
				continue
			}
			out = append(out, source{fields: fields, row: r})
		}
		return out
	}

	if isKeyValueTable(rows) {
		return []source{{table: table}}
	}
	return nil
}

func isKeyValueTable(rows []*html.Node) bool {
	known := 0
	hasTimestamp := false
	for _, r := range rows {
		cells := cellTexts(r)
		if len(cells) != 2 {
			continue
		}
		f, ok := model.CanonicalField(cells[0])
		if !ok {
			continue
		}
		known++
		if f == model.FieldUTCTimestamp {
			hasTimestamp = true
		}
	}
	return hasTimestamp && known >= minKnownColumns
}

func keyValueRecord(table *html.Node) model.RawRecord {
	rec := make(model.RawRecord)
	for _, r := range tableRows(table) {
		cells := cellTexts(r)
		if len(cells) != 2 || cells[1] == "" {
			continue
		}
		f, ok := model.CanonicalField(cells[0])
		if !ok {
			continue
		}
		if _, dup := rec[f]; !dup {
			rec[f] = cells[1]
		}
	}
	return rec
}

// findTables returns every <table> element in document order, nested ones
// included.
func findTables(n *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Table {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// tableRows returns the rows that belong to table itself, skipping rows of
// nested tables.
func tableRows(table *html.Node) []*html.Node {
	var out []*html.Node
	for c := table.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Tr:
			out = append(out, c)
		case atom.Thead, atom.Tbody, atom.Tfoot:
			for r := c.FirstChild; r != nil; r = r.NextSibling {
				if r.Type == html.ElementNode && r.DataAtom == atom.Tr {
					out = append(out, r)
				}
			}
		}
	}
	return out
}

func cellTexts(tr *html.Node) []string {
	var out []string
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
			out = append(out, nodeText(c))
		}
	}
	return out
}

// nodeText flattens the text under n, treating <br> as a space and collapsing
// whitespace runs (including NBSP) to single spaces.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
		case n.Type == html.ElementNode && n.DataAtom == atom.Br:
			b.WriteByte(' ')
		case n.Type == html.ElementNode && n.DataAtom == atom.Table:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func allEmpty(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
