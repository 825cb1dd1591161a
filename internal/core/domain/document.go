package domain

import (
	"strings"
	"time"
)

// Modality is the media type of an uploaded document.
type Modality string

const (
	ModalityImage Modality = "image"
	ModalityVideo Modality = "video"
	ModalityPDF   Modality = "pdf"
)

// ParseModality maps an upload MIME type to a modality. Unknown types
// return false and are rejected at the API boundary.
func ParseModality(mimeType string) (Modality, bool) {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch {
	case mt == "application/pdf":
		return ModalityPDF, true
	case strings.HasPrefix(mt, "image/"):
		return ModalityImage, true
	case strings.HasPrefix(mt, "video/"):
		return ModalityVideo, true
	default:
		return "", false
	}
}

// Document is an uploaded artifact. The source blob is immutable once
// stored; only Processed flips, exactly once, when a scan completes.
type Document struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title"`
	Filename   string    `json:"filename"`
	MimeType   string    `json:"mime_type"`
	Modality   Modality  `json:"modality"`
	StorageKey string    `json:"storage_key"`
	Processed  bool      `json:"processed"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
