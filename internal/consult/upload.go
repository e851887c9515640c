package consult

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/sivia/sivia/pkg/clinical"
)

// ValidateUpload rejects a file before anything is sent: over 10 MB is
// "arquivo muito grande", a type outside PDF/JPEG/PNG/WEBP/GIF is "tipo de
// arquivo inválido". An empty type is guessed from the file extension.
func ValidateUpload(name, fileType string, size int64) error {
	return clinical.ValidateUpload(uploadType(name, fileType), size)
}

func uploadType(name, declared string) string {
	if strings.TrimSpace(declared) != "" {
		return declared
	}
	return mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
}
