package extract

import (
	"bytes"
	"errors"

	"invoice-collector-be/pkg/resilience"
)

// Detected document types.
const (
	TypePDF   = "pdf"
	TypeDocx  = "docx"
	TypeImage = "image"
)

var (
	sigPDF  = []byte("%PDF")
	sigZip  = []byte("PK\x03\x04")
	sigJPEG = []byte{0xFF, 0xD8, 0xFF}
	sigPNG  = []byte{0x89, 'P', 'N', 'G'}
)

// DetectType sniffs the document type from leading magic bytes. The
// declared filename or MIME type is never trusted; users rename files.
func DetectType(data []byte) (string, error) {
	switch {
	case bytes.HasPrefix(data, sigPDF):
		return TypePDF, nil
	case bytes.HasPrefix(data, sigZip):
		// DOCX is a zip container; non-docx zips fail later in the
		// docx parser with the same user-facing outcome.
		return TypeDocx, nil
	case bytes.HasPrefix(data, sigJPEG), bytes.HasPrefix(data, sigPNG):
		return TypeImage, nil
	}
	return "", resilience.NewDependencyError("document_processor", resilience.KindUnsupported, 0,
		errors.New("unrecognized file signature"))
}
