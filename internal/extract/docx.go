package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

// DOCXExtractor extracts paragraph text from DOCX files using the embedded
// word/document.xml stream. DOCX has no page geometry at this level, so blocks
// carry line offsets like plain text.
type DOCXExtractor struct {
	linesPerBlock int
	linesPerPage  int
}

// NewDOCXExtractor creates a DOCX extractor.
func NewDOCXExtractor() *DOCXExtractor {
	return &DOCXExtractor{
		linesPerBlock: defaultLinesPerBlock,
		linesPerPage:  defaultLinesPerPage,
	}
}

// Extract implements Extractor.
func (e *DOCXExtractor) Extract(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	text, err := docxText(data)
	if err != nil {
		return nil, err
	}

	return &Result{
		Text:     text,
		MimeType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		Blocks:   GroupLines(text, e.linesPerBlock, e.linesPerPage),
	}, nil
}

func docxText(data []byte) (string, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}

	var docFile *zip.File
	for _, f := range r.File {
		if strings.EqualFold(f.Name, "word/document.xml") {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", fmt.Errorf("docx missing word/document.xml")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("open document.xml: %w", err)
	}
	defer rc.Close()

	return docxTextFromXML(rc), nil
}

// docxTextFromXML streams document.xml, collecting run text and translating
// paragraph and break elements into newlines.
func docxTextFromXML(r io.Reader) string {
	dec := xml.NewDecoder(r)
	var buf bytes.Buffer
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				var text string
				if err := dec.DecodeElement(&text, &t); err == nil {
					buf.WriteString(text)
				}
			case "tab":
				buf.WriteByte('\t')
			case "br", "cr":
				buf.WriteByte('\n')
			}
		case xml.EndElement:
			if t.Name.Local == "p" {
				buf.WriteString("\n\n")
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
