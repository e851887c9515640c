// Package extraction reads an uploaded medical record (PDF or image) with a
// vision model and returns its structured content.
package extraction

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sivia/sivia/internal/platform/blobstore"
	"github.com/sivia/sivia/internal/platform/gateway"
	"github.com/sivia/sivia/pkg/clinical"
)

const (
	temperature = 0.2
	maxTokens   = 4000
)

var (
	ErrFileRequired  = errors.New("file is required")
	ErrInvalidBase64 = errors.New("file is not valid base64")
)

// Completer is satisfied by *gateway.Client.
type Completer interface {
	Complete(ctx context.Context, req gateway.Request) (*gateway.Response, error)
}

// Upload is one document sent by the client.
type Upload struct {
	UserID     string
	FileBase64 string
	FileType   string
	FileName   string
}

type Service struct {
	gw      Completer
	model   string
	archive blobstore.Store
	logger  zerolog.Logger
}

func NewService(gw Completer, model string, logger zerolog.Logger) *Service {
	return &Service{gw: gw, model: model, logger: logger}
}

// SetArchive stores every accepted upload before it is sent to the model.
func (s *Service) SetArchive(store blobstore.Store) {
	s.archive = store
}

// Extract validates the upload, archives it when an archive is configured
// and asks the vision model for the structured record.
func (s *Service) Extract(ctx context.Context, up Upload) (*clinical.ExtractedDocument, error) {
	payload := stripDataURL(strings.TrimSpace(up.FileBase64))
	if payload == "" {
		return nil, ErrFileRequired
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBase64, err)
	}
	if len(data) == 0 {
		return nil, ErrFileRequired
	}

	declared := up.FileType
	sniffed := mimetype.Detect(data)
	if strings.TrimSpace(declared) == "" {
		declared = sniffed.String()
	}
	if err := clinical.ValidateUpload(declared, int64(len(data))); err != nil {
		return nil, err
	}
	if !sameFamily(declared, sniffed) {
		s.logger.Warn().
			Str("declared", declared).
			Str("detected", sniffed.String()).
			Str("file_name", up.FileName).
			Msg("upload content does not match declared type")
		return nil, clinical.ErrInvalidFileType
	}

	mediaType := clinical.MediaType(declared)
	s.store(ctx, up, mediaType, data)

	s.logger.Info().
		Str("file_name", up.FileName).
		Str("media_type", mediaType).
		Int("size", len(data)).
		Msg("processing document")

	resp, err := s.gw.Complete(ctx, gateway.Request{
		Model: s.model,
		Messages: []gateway.Message{
			gateway.SystemMessage(extractionPrompt),
			gateway.UserParts(
				gateway.ImagePart(mediaType, payload),
				gateway.TextPart(extractionInstruction),
			),
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("model", s.model).Msg("document extraction call failed")
		return nil, err
	}

	var doc clinical.ExtractedDocument
	if err := gateway.DecodeJSON(resp.Content, &doc); err != nil {
		s.logger.Warn().Err(err).Msg("unparseable extraction output")
		return nil, err
	}
	return &doc, nil
}

func (s *Service) store(ctx context.Context, up Upload, mediaType string, data []byte) {
	if s.archive == nil || up.UserID == "" {
		return
	}
	key := blobstore.DocumentKey(up.UserID, uuid.NewString(), up.FileName)
	if _, err := s.archive.Put(ctx, key, mediaType, data); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("failed to archive document")
		return
	}
	s.logger.Debug().Str("key", key).Msg("document archived")
}

// stripDataURL drops a "data:<type>;base64," prefix some browsers keep.
func stripDataURL(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if _, rest, ok := strings.Cut(s, ";base64,"); ok {
		return rest
	}
	return s
}

// sameFamily reports whether the sniffed content agrees with the declared
// type: a PDF must sniff as PDF, an image as any image.
func sameFamily(declared string, sniffed *mimetype.MIME) bool {
	if clinical.MediaType(declared) == "application/pdf" {
		return sniffed.Is("application/pdf")
	}
	return strings.HasPrefix(sniffed.String(), "image/")
}
