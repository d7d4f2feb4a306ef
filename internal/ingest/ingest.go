// Package ingest is the entry boundary for export documents: it resolves the
// declared content kind, unwraps compressed payloads and hands decoded text to
// the matching extractor.
package ingest

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/zstd"

	"github.com/pable/codstats/internal/model"
)

// Kind is a recognized document format.
type Kind string

const (
	KindHTML Kind = "html"
	KindCSV  Kind = "csv"
)

// compression wraps a Kind.
type compression int

const (
	compressNone compression = iota
	compressGzip
	compressZstd
)

// maxDecodedSize bounds decompressed payloads.
const maxDecodedSize = 256 << 20

// Document is decoded export text ready for extraction.
type Document struct {
	Kind Kind
	Text string
}

// Decode validates kind and returns the document text. kind may be a bare
// format ("html", "csv"), a MIME type ("text/html; charset=utf-8"), a file
// extension (".htm") or any of those suffixed with "+zstd" / "+gzip".
func Decode(data []byte, kind string) (Document, error) {
	k, comp, err := parseKind(kind)
	if err != nil {
		return Document{}, err
	}

	switch comp {
	case compressZstd:
		dec, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return Document{}, fmt.Errorf("zstd: %w", err)
		}
		defer dec.Close()
		if data, err = readBounded(dec); err != nil {
			return Document{}, fmt.Errorf("zstd: %w", err)
		}
	case compressGzip:
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return Document{}, fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		if data, err = readBounded(gz); err != nil {
			return Document{}, fmt.Errorf("gzip: %w", err)
		}
	}

	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "\uFFFD")
	}
	return Document{Kind: k, Text: text}, nil
}

// parseKind resolves a declared kind into a format and compression.
func parseKind(kind string) (Kind, compression, error) {
	raw := kind
	kind = strings.ToLower(strings.TrimSpace(kind))
	if i := strings.IndexByte(kind, ';'); i >= 0 {
		kind = strings.TrimSpace(kind[:i])
	}

	comp := compressNone
	for suffix, c := range map[string]compression{"+zstd": compressZstd, "+zst": compressZstd, "+gzip": compressGzip, "+gz": compressGzip} {
		if strings.HasSuffix(kind, suffix) {
			kind = strings.TrimSuffix(kind, suffix)
			comp = c
			break
		}
	}

	switch strings.TrimPrefix(kind, ".") {
	case "html", "htm", "text/html", "application/xhtml+xml":
		return KindHTML, comp, nil
	case "csv", "text/csv", "application/csv":
		return KindCSV, comp, nil
	}
	return "", compressNone, &model.UnsupportedFormatError{Kind: raw}
}

// KindFromFilename derives a declared kind from a file name, e.g.
// "export.html.zst" -> "html+zstd".
func KindFromFilename(name string) string {
	name = strings.ToLower(filepath.Base(name))
	suffix := ""
	switch ext := filepath.Ext(name); ext {
	case ".zst", ".zstd":
		suffix = "+zstd"
		name = strings.TrimSuffix(name, ext)
	case ".gz":
		suffix = "+gzip"
		name = strings.TrimSuffix(name, ext)
	}
	return strings.TrimPrefix(filepath.Ext(name), ".") + suffix
}

func readBounded(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxDecodedSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxDecodedSize {
		return nil, fmt.Errorf("decoded document exceeds %d bytes", maxDecodedSize)
	}
	return data, nil
}
