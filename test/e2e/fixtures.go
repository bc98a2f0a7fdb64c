// Package e2e runs the ingest and question-answering paths end to end over real
// files, the SQLite-backed vector index and the hashing embedder.
package e2e

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SupportedFileExtensions are the formats generated for file-based tests: plain text
// (.txt, .md, .rst), OOXML (.docx, .xlsx, .pptx) and OpenDocument (.odp, .ods).
// PDF is not generated here; there is no minimal PDF with extractable text.
var SupportedFileExtensions = []string{
	".txt", ".md", ".rst",
	".docx", ".xlsx", ".pptx", ".odp", ".ods",
}

// zippedPart is the single XML part a packaged fixture needs; %s receives the text.
type zippedPart struct {
	name     string
	template string
}

var zippedParts = map[string]zippedPart{
	".docx": {"word/document.xml",
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>%s</w:t></w:r></w:p></w:body></w:document>`},
	".pptx": {"ppt/slides/slide1.xml",
		`<p:sld xmlns:p="a" xmlns:a="b"><p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>%s</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`},
	".odp": {"content.xml",
		`<office:document><office:body><draw:page><draw:text-box><text:p>%s</text:p></draw:text-box></draw:page></office:body></office:document>`},
	".ods": {"content.xml",
		`<office:document><office:body><table:table><table:table-row><table:table-cell><text:p>%s</text:p></table:table-cell></table:table-row></table:table></office:body></office:document>`},
}

// WriteMinimalFile returns the bytes of a minimal document of the given extension holding text.
func WriteMinimalFile(ext, text string) ([]byte, error) {
	ext = strings.ToLower(ext)
	switch ext {
	case ".txt", ".md", ".rst":
		return []byte(text), nil
	case ".xlsx":
		return workbook(text)
	}
	part, ok := zippedParts[ext]
	if !ok {
		return nil, fmt.Errorf("no fixture for %s", ext)
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fw, err := zw.Create(part.name)
	if err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintf(fw, part.template, text); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func workbook(text string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetCellValue("Sheet1", "A1", text); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
