package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"invoice-collector-be/pkg/resilience"
)

// ParseDocx pulls the plain text out of a DOCX container by walking
// the character data of word/document.xml. Paragraph boundaries
// become newlines; all other markup is dropped.
func ParseDocx(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", resilience.NewDependencyError("document_processor", resilience.KindUnsupported, 0, err)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", resilience.NewDependencyError("document_processor", resilience.KindUnsupported, 0,
			errors.New("zip archive is not a docx document"))
	}

	rc, err := doc.Open()
	if err != nil {
		return "", resilience.NewDependencyError("document_processor", resilience.KindUnsupported, 0, err)
	}
	defer rc.Close()

	var b strings.Builder
	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", resilience.NewDependencyError("document_processor", resilience.KindUnsupported, 0, err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.EndElement:
			if t.Name.Local == "p" {
				b.WriteByte('\n')
			}
		}
	}
	return b.String(), nil
}
