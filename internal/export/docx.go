package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"scribe/internal/merge"
)

// A .docx file is a zip of OOXML parts. The three parts below are the
// minimum a word processor needs to open the document.

const docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="xml" ContentType="application/xml"/>
  <Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>
`

const docxRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>
`

func renderDOCX(transcript merge.Transcript, opts Options) ([]byte, error) {
	var doc strings.Builder
	doc.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	doc.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)

	if name := languageName(transcript.Language); name != "" {
		writeParagraph(&doc, "Language: "+name, true)
	}
	if transcript.NumSpeakers > 0 {
		writeParagraph(&doc, fmt.Sprintf("Speakers: %d", transcript.NumSpeakers), true)
	}
	for _, seg := range transcript.Segments {
		line := transcriptLine(seg, opts)
		if line == "" {
			continue
		}
		writeParagraph(&doc, line, false)
	}
	doc.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	archive := zip.NewWriter(&buf)
	parts := []struct {
		name string
		body string
	}{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", docxRels},
		{"word/document.xml", doc.String()},
	}
	for _, part := range parts {
		writer, err := archive.Create(part.name)
		if err != nil {
			return nil, fmt.Errorf("create docx part %s: %w", part.name, err)
		}
		if _, err := writer.Write([]byte(part.body)); err != nil {
			return nil, fmt.Errorf("write docx part %s: %w", part.name, err)
		}
	}
	if err := archive.Close(); err != nil {
		return nil, fmt.Errorf("finalize docx: %w", err)
	}
	return buf.Bytes(), nil
}

func writeParagraph(doc *strings.Builder, text string, bold bool) {
	doc.WriteString(`<w:p><w:r>`)
	if bold {
		doc.WriteString(`<w:rPr><w:b/></w:rPr>`)
	}
	doc.WriteString(`<w:t xml:space="preserve">`)
	_ = xml.EscapeText(doc, []byte(text))
	doc.WriteString(`</w:t></w:r></w:p>`)
}
