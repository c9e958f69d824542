package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"pl-ner-backend/internal/core/utils"

	"github.com/PuerkitoBio/goquery"
	"github.com/gen2brain/go-fitz"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Chunk is a piece of a document's text. Offset is the rune offset of Text
// within the whole document.
type Chunk struct {
	Text   string
	Offset int
	Error  error
}

type Parser interface {
	Parse(object string, data io.Reader) chan Chunk
}

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrDocumentTooLarge    = errors.New("document is too large for parsing")
)

const (
	defaultMaxDocumentSize = 64 * 1024 * 1024 // 64 MB
	defaultMaxChunkRunes   = 64 * 1024
	queueBufferSize        = 4
)

var plaintextTypes = map[string]bool{
	".txt": true, ".csv": true, ".json": true, ".xml": true, ".md": true, ".log": true,
}

func IsSupported(object string) bool {
	switch ext := strings.ToLower(filepath.Ext(object)); ext {
	case ".pdf", ".html", ".htm", ".xlsx":
		return true
	default:
		return plaintextTypes[ext]
	}
}

type DefaultParser struct {
	maxDocumentSize int64
	maxChunkRunes   int
	legacyEncoding  encoding.Encoding
}

type ParserOption func(*DefaultParser)

func WithMaxChunkRunes(n int) ParserOption {
	return func(p *DefaultParser) { p.maxChunkRunes = n }
}

func WithMaxDocumentSize(n int64) ParserOption {
	return func(p *DefaultParser) { p.maxDocumentSize = n }
}

// WithLegacyEncoding sets the encoding tried for documents that are not valid
// UTF-8. Windows-1250 is the default; charmap.ISO8859_2 is the other common
// Polish code page.
func WithLegacyEncoding(enc encoding.Encoding) ParserOption {
	return func(p *DefaultParser) { p.legacyEncoding = enc }
}

func NewDefaultParser(opts ...ParserOption) *DefaultParser {
	p := &DefaultParser{
		maxDocumentSize: defaultMaxDocumentSize,
		maxChunkRunes:   defaultMaxChunkRunes,
		legacyEncoding:  charmap.Windows1250,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (parser *DefaultParser) Parse(object string, data io.Reader) chan Chunk {
	output := make(chan Chunk, queueBufferSize)

	go func() {
		defer close(output)

		text, err := parser.extractText(object, data)
		if err != nil {
			output <- Chunk{Error: fmt.Errorf("error parsing %s: %w", object, err)}
			return
		}

		chunks, offsets := utils.ChunkText(text, parser.maxChunkRunes)
		for i, chunk := range chunks {
			output <- Chunk{Text: chunk, Offset: offsets[i]}
		}
	}()

	return output
}

func (parser *DefaultParser) extractText(object string, data io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(object))
	if !IsSupported(object) {
		return "", fmt.Errorf("%w: '%s'", ErrUnsupportedFileType, ext)
	}

	document, err := io.ReadAll(io.LimitReader(data, parser.maxDocumentSize+1))
	if err != nil {
		return "", err
	}
	if int64(len(document)) > parser.maxDocumentSize {
		return "", ErrDocumentTooLarge
	}

	switch ext {
	case ".pdf":
		return parsePdf(document)
	case ".xlsx":
		return parseXlsx(document)
	case ".html", ".htm":
		text, err := parser.decode(document)
		if err != nil {
			return "", err
		}
		return parseHtml(text)
	default:
		return parser.decode(document)
	}
}

func (parser *DefaultParser) decode(document []byte) (string, error) {
	document = bytes.TrimPrefix(document, []byte("\xef\xbb\xbf"))
	if utf8.Valid(document) {
		return string(document), nil
	}

	decoded, err := parser.legacyEncoding.NewDecoder().Bytes(document)
	if err != nil {
		return "", fmt.Errorf("error decoding legacy encoded text: %w", err)
	}
	return string(decoded), nil
}

func parsePdf(document []byte) (string, error) {
	pdf, err := fitz.NewFromMemory(document)
	if err != nil {
		return "", err
	}
	defer pdf.Close()

	pages := make([]string, 0, pdf.NumPage())
	for i := 0; i < pdf.NumPage(); i++ {
		pageText, err := pdf.Text(i)
		if err != nil {
			return "", fmt.Errorf("error reading page %d: %w", i, err)
		}
		pages = append(pages, pageText)
	}

	return strings.Join(pages, "\n\n"), nil
}

func parseXlsx(document []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(document))
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sheets []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("error reading sheet %s: %w", sheet, err)
		}

		lines := make([]string, 0, len(rows))
		for _, row := range rows {
			lines = append(lines, strings.Join(row, "\t"))
		}
		sheets = append(sheets, strings.Join(lines, "\n"))
	}

	return strings.Join(sheets, "\n\n"), nil
}

func parseHtml(text string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, noscript, template").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, tr, h1, h2, h3, h4, h5, h6, title, section, article").AppendHtml("\n")
	doc.Find("td, th").AppendHtml(" ")

	return utils.CollapseBlankLines(doc.Text()), nil
}
