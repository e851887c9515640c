package clinical

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		size        int64
		want        error
	}{
		{"pdf", "application/pdf", 1024, nil},
		{"png with params", "image/png; charset=binary", 2048, nil},
		{"upper case", "IMAGE/JPEG", 10, nil},
		{"at limit", "image/webp", MaxUploadBytes, nil},
		{"too large", "image/png", MaxUploadBytes + 1, ErrFileTooLarge},
		{"word document", "application/msword", 100, ErrInvalidFileType},
		{"empty type", "", 100, ErrInvalidFileType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, ValidateUpload(tt.contentType, tt.size), tt.want)
		})
	}
}

func TestMediaType(t *testing.T) {
	assert.Equal(t, "application/pdf", MediaType("application/pdf"))
	assert.Equal(t, "image/png", MediaType("image/PNG"))
	assert.Equal(t, "image/webp", MediaType("image/webp"))
	assert.Equal(t, "image/gif", MediaType("image/gif"))
	assert.Equal(t, "image/jpeg", MediaType("image/jpeg"))
	assert.Equal(t, "image/jpeg", MediaType(""))
}
