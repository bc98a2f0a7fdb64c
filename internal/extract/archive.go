package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"sort"
	"strings"
)

// Zip-packaged formats (OOXML and OpenDocument) keep their text in XML parts.
const (
	contentTypesPath    = "[Content_Types].xml"
	docxDefaultBodyPath = "word/document.xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	pptxSlidePrefix     = "ppt/slides/slide"
	openDocumentContent = "content.xml"
)

var (
	wordRunText  = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	drawingText  = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)
	odfTextBlock = regexp.MustCompile(`<text:(?:p|h|span)[^>]*>([^<]*)</text:(?:p|h|span)>`)

	mainPartAfter  = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	mainPartBefore = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)
)

type archive struct {
	name string
	zr   *zip.Reader
}

func openArchive(format string, content []byte) (*archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: not a zip: %w", format, err)
	}
	return &archive{name: format, zr: zr}, nil
}

// read returns the named part, or nil if the archive has no such part.
func (a *archive) read(name string) ([]byte, error) {
	for _, f := range a.zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("extract %s: open %s: %w", a.name, f.Name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("extract %s: read %s: %w", a.name, f.Name, err)
		}
		return data, nil
	}
	return nil, nil
}

func (a *archive) mustRead(name string) ([]byte, error) {
	data, err := a.read(name)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("extract %s: %s not found", a.name, name)
	}
	return data, nil
}

// collectText joins the first capture group of every match with single spaces.
func collectText(b *strings.Builder, re *regexp.Regexp, xml []byte) {
	for _, m := range re.FindAllSubmatch(xml, -1) {
		text := strings.TrimSpace(html.UnescapeString(string(m[1])))
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(text)
	}
}

// extractDOCX reads every <w:t> run of the main document part. The part name comes from
// [Content_Types].xml when present so renamed bodies (word/document2.xml) still work.
func extractDOCX(content []byte) (string, error) {
	a, err := openArchive("DOCX", content)
	if err != nil {
		return "", err
	}
	bodyPath := docxDefaultBodyPath
	types, err := a.read(contentTypesPath)
	if err != nil {
		return "", err
	}
	if types != nil {
		for _, re := range []*regexp.Regexp{mainPartAfter, mainPartBefore} {
			if m := re.FindSubmatch(types); len(m) > 1 {
				bodyPath = strings.TrimPrefix(string(m[1]), "/")
				break
			}
		}
	}
	body, err := a.mustRead(bodyPath)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	collectText(&b, wordRunText, body)
	return b.String(), nil
}

// extractPPTX reads <a:t> runs from each slide in slide-number order.
func extractPPTX(content []byte) (string, error) {
	a, err := openArchive("PPTX", content)
	if err != nil {
		return "", err
	}
	var slides []string
	for _, f := range a.zr.File {
		if strings.HasPrefix(f.Name, pptxSlidePrefix) && strings.HasSuffix(f.Name, ".xml") {
			slides = append(slides, f.Name)
		}
	}
	sort.Slice(slides, func(i, j int) bool {
		if len(slides[i]) != len(slides[j]) {
			return len(slides[i]) < len(slides[j])
		}
		return slides[i] < slides[j]
	})
	var b strings.Builder
	for _, name := range slides {
		xml, err := a.mustRead(name)
		if err != nil {
			return "", err
		}
		collectText(&b, drawingText, xml)
	}
	return b.String(), nil
}

// extractOpenDocument reads text:p, text:h and text:span elements from content.xml
// in document order (ODP and ODS share the layout).
func extractOpenDocument(content []byte) (string, error) {
	a, err := openArchive("OpenDocument", content)
	if err != nil {
		return "", err
	}
	xml, err := a.mustRead(openDocumentContent)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	collectText(&b, odfTextBlock, xml)
	return b.String(), nil
}
