// Package documents loads raw text out of the three source formats the
// specification admits: .txt, .md, and .pdf. Per the specification this
// loader's contract is the only thing that matters, not faithful PDF
// rendering, so the PDF path is a minimal best-effort scraper rather
// than a full parser.
package documents

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Source records the immutable provenance of one ingested file.
type Source struct {
	Path        string
	ContentHash string
	ModTime     time.Time
	IngestedAt  time.Time
}

// Document is the raw text extracted from one source file, ready for
// chunking.
type Document struct {
	Source Source
	Text   string
}

var supportedExt = map[string]bool{
	".txt": true,
	".md":  true,
	".pdf": true,
}

// Supported reports whether path's extension is one the loader
// dispatches on.
func Supported(path string) bool {
	return supportedExt[strings.ToLower(filepath.Ext(path))]
}

// Load reads path and returns the extracted Document. Callers are
// expected to have already skipped paths that don't exist or carry an
// unsupported extension (see Supported); Load itself still stats the
// file to record mtime and re-verifies existence, since the skip check
// and the load are not atomic.
func Load(path string) (Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Document{}, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}

	var text string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text = extractPDFText(raw)
	default:
		text = string(raw)
	}

	sum := sha256.Sum256(raw)
	now := time.Now()
	return Document{
		Source: Source{
			Path:        path,
			ContentHash: hex.EncodeToString(sum[:]),
			ModTime:     info.ModTime(),
			IngestedAt:  now,
		},
		Text: text,
	}, nil
}

// extractPDFText walks a PDF's raw bytes for stream/endstream spans and
// parenthesized literal-string runs, the cheapest approximation of text
// extraction that needs no parsing library. It recovers readable text
// from simple, uncompressed PDFs and silently yields less (never an
// error) on compressed or image-only ones.
func extractPDFText(raw []byte) string {
	var out strings.Builder
	for _, span := range streamSpans(raw) {
		out.Write(extractLiteralStrings(span))
		out.WriteByte('\n')
	}
	if out.Len() == 0 {
		out.Write(extractLiteralStrings(raw))
	}
	return out.String()
}

func streamSpans(raw []byte) [][]byte {
	var spans [][]byte
	start := []byte("stream")
	end := []byte("endstream")
	pos := 0
	for {
		s := bytes.Index(raw[pos:], start)
		if s == -1 {
			break
		}
		s += pos + len(start)
		e := bytes.Index(raw[s:], end)
		if e == -1 {
			break
		}
		spans = append(spans, raw[s:s+e])
		pos = s + e + len(end)
	}
	return spans
}

// extractLiteralStrings pulls the contents of PDF "(...)" literal
// strings, which is where uncompressed content streams place the
// characters shown by Tj/TJ text operators.
func extractLiteralStrings(span []byte) []byte {
	var out bytes.Buffer
	depth := 0
	for i := 0; i < len(span); i++ {
		switch span[i] {
		case '(':
			if depth == 0 {
				depth = 1
				continue
			}
			depth++
		case ')':
			depth--
			if depth == 0 {
				out.WriteByte(' ')
				continue
			}
		case '\\':
			if depth > 0 && i+1 < len(span) {
				i++
				out.WriteByte(span[i])
				continue
			}
		default:
			if depth > 0 {
				out.WriteByte(span[i])
			}
		}
	}
	return out.Bytes()
}
