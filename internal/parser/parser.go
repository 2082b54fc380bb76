package parser

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"docchat/internal/models"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNoText            = errors.New("document contains no extractable text")

	paragraphEndRe = regexp.MustCompile(`</w:p>|</a:p>`)
	xmlTagRe       = regexp.MustCompile(`<[^>]+>`)
)

// SupportedExtensions lists the file extensions ExtractText understands.
var SupportedExtensions = []string{".pdf", ".docx", ".pptx", ".xlsx", ".xlsm", ".xltx", ".md", ".markdown", ".txt"}

// ExtractFile reads a document from disk and extracts its text.
func ExtractFile(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", &models.ExtractionError{Name: filePath, Err: err}
	}
	return ExtractText(filepath.Base(filePath), data)
}

// ExtractText picks an extractor from the extension of name. Any failure,
// including a document without text, is reported as *models.ExtractionError.
func ExtractText(name string, data []byte) (content string, err error) {
	defer func() {
		// ledongthuc/pdf panics on some malformed files
		if r := recover(); r != nil {
			content, err = "", &models.ExtractionError{Name: name, Err: fmt.Errorf("malformed document: %v", r)}
		}
	}()

	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".pdf":
		content, err = parsePDF(data)
	case ".docx":
		content, err = parseDOCX(data)
	case ".pptx":
		content, err = parsePPTX(data)
	case ".xlsx":
		content, err = parseXLSX(data)
	case ".xlsm", ".xltx":
		content, err = parseExcelize(data)
	case ".md", ".markdown":
		content, err = parseMarkdown(data)
	case ".txt":
		content = string(data)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return "", &models.ExtractionError{Name: name, Err: err}
	}
	if strings.TrimSpace(content) == "" {
		return "", &models.ExtractionError{Name: name, Err: ErrNoText}
	}

	log.Debug().Str("name", name).Int("bytes", len(data)).Int("chars", len(content)).Msg("Extracted text")
	return content, nil
}

func parsePDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		b.WriteString(pageText)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func parseDOCX(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	defer r.Close()

	return xmlToText(r.Editable().GetContent()), nil
}

func parsePPTX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, file := range zr.File {
		if !strings.HasPrefix(file.Name, "ppt/slides/slide") {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", err
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", err
		}
		b.WriteString(xmlToText(string(raw)))
		b.WriteString("\n")
	}
	return b.String(), nil
}

func parseXLSX(data []byte) (string, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, sheet := range f.Sheets {
		b.WriteString(fmt.Sprintf("Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			if row == nil {
				continue
			}
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			b.WriteString(strings.Join(cells, "\t"))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

func parseExcelize(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer f.Close()

	var b strings.Builder
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return "", fmt.Errorf("sheet %q: %w", sheetName, err)
		}
		b.WriteString(fmt.Sprintf("Sheet: %s\n", sheetName))
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

// parseMarkdown renders markdown to plain text: block nodes end with a blank
// line so the chunker still sees paragraph boundaries.
func parseMarkdown(data []byte) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(data))

	var b strings.Builder
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument && n.Kind() != ast.KindListItem {
				b.WriteString("\n\n")
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			b.Write(node.Segment.Value(data))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteString("\n")
			}
		case *ast.String:
			b.Write(node.Value)
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				b.Write(seg.Value(data))
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(b.String()) + "\n", nil
}

// xmlToText flattens WordprocessingML or DrawingML into text, one line per paragraph.
func xmlToText(raw string) string {
	withBreaks := paragraphEndRe.ReplaceAllString(raw, "\n")
	stripped := xmlTagRe.ReplaceAllString(withBreaks, "")
	return html.UnescapeString(stripped)
}
