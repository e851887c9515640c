package clinical

import (
	"errors"
	"strings"
)

// MaxUploadBytes is the largest document accepted for extraction (10 MB).
const MaxUploadBytes = 10 * 1024 * 1024

// AllowedUploadTypes lists the MIME types the extraction relay accepts.
var AllowedUploadTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"image/gif":       true,
}

var (
	ErrFileTooLarge    = errors.New("arquivo muito grande")
	ErrInvalidFileType = errors.New("tipo de arquivo inválido")
)

// ValidateUpload checks a document against the size and type limits. It is
// run by the client before anything is sent and again by the relay.
func ValidateUpload(contentType string, size int64) error {
	if size > MaxUploadBytes {
		return ErrFileTooLarge
	}
	if !AllowedUploadTypes[baseType(contentType)] {
		return ErrInvalidFileType
	}
	return nil
}

// MediaType maps a declared file type onto the media type sent to the
// vision model, defaulting to JPEG.
func MediaType(fileType string) string {
	ft := strings.ToLower(fileType)
	switch {
	case strings.Contains(ft, "pdf"):
		return "application/pdf"
	case strings.Contains(ft, "png"):
		return "image/png"
	case strings.Contains(ft, "webp"):
		return "image/webp"
	case strings.Contains(ft, "gif"):
		return "image/gif"
	}
	return "image/jpeg"
}

func baseType(contentType string) string {
	t, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(t))
}
