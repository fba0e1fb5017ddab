package render

import (
	"invoice-collector-be/internal/entity"
)

// Document is a rendered invoice ready to send to the user.
type Document struct {
	Content  []byte
	MimeType string
	FileName string
}

// Renderer turns a collected invoice into a deliverable document.
// Implementations must be safe for concurrent use.
type Renderer interface {
	Name() string
	Render(inv *entity.Invoice) (*Document, error)
}
