package progression

import (
	"fmt"
	"mime"
	"strings"

	"github.com/pavelanni/traderpath/internal/model"
)

// DefaultMaxUploadBytes caps assignment artifacts at 20 MiB.
const DefaultMaxUploadBytes = 20 << 20

// DefaultAllowedTypes are the artifact content types accepted by default.
var DefaultAllowedTypes = []string{
	"application/pdf",
	"image/png",
	"image/jpeg",
	"text/plain",
	"application/zip",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// UploadPolicy bounds what an assignment artifact may be.
type UploadPolicy struct {
	MaxBytes     int64
	AllowedTypes []string
}

// DefaultUploadPolicy returns the policy used when nothing is configured.
func DefaultUploadPolicy() UploadPolicy {
	return UploadPolicy{MaxBytes: DefaultMaxUploadBytes, AllowedTypes: DefaultAllowedTypes}
}

// Check validates an artifact's declared name, size and type. It does not
// inspect content.
func (p UploadPolicy) Check(name string, size int64, contentType string) error {
	if strings.TrimSpace(name) == "" {
		return &model.ValidationError{Field: "file", Reason: "missing file name"}
	}
	if size <= 0 {
		return &model.ValidationError{Field: "file", Reason: "empty file"}
	}
	if p.MaxBytes > 0 && size > p.MaxBytes {
		return &model.ValidationError{Field: "file", Reason: fmt.Sprintf("file is %d bytes, limit is %d", size, p.MaxBytes)}
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return &model.ValidationError{Field: "file", Reason: fmt.Sprintf("bad content type %q", contentType)}
	}
	if len(p.AllowedTypes) == 0 {
		return nil
	}
	for _, t := range p.AllowedTypes {
		if strings.EqualFold(t, mediaType) {
			return nil
		}
	}
	return &model.ValidationError{Field: "file", Reason: fmt.Sprintf("content type %s not accepted", mediaType)}
}
