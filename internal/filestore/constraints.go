// Package filestore holds document artifacts: the upload constraints every
// adapter enforces, an S3-compatible store and an in-memory store.
package filestore

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"fleetdocs/internal/document/models"
	dErrors "fleetdocs/pkg/domain-errors"
)

// MaxSize is the largest artifact accepted.
const MaxSize = 10 << 20 // 10MB

// acceptedTypes maps each accepted content type to the file extensions that
// may carry it.
var acceptedTypes = map[string][]string{
	"application/pdf":    {".pdf"},
	"image/jpeg":         {".jpg", ".jpeg"},
	"image/png":          {".png"},
	"image/webp":         {".webp"},
	"image/heic":         {".heic"},
	"image/heif":         {".heif", ".heic"},
	"image/tiff":         {".tif", ".tiff"},
	"application/msword": {".doc"},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {".docx"},
}

// sniffable lists the types the content sniffer recognises; for these the
// bytes must agree with the declared type.
var sniffable = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
}

// Accept checks an upload against the size ceiling and type whitelist.
// Violations are file_rejected errors.
func Accept(u models.Upload) error {
	if u.IsEmpty() {
		return dErrors.New(dErrors.CodeFileRejected, "file is empty")
	}
	if u.Size() > MaxSize {
		return dErrors.New(dErrors.CodeFileRejected, fmt.Sprintf("file too large: maximum size is %d MB", MaxSize>>20))
	}

	contentType := normalizeContentType(u.ContentType)
	extensions, ok := acceptedTypes[contentType]
	if !ok {
		return dErrors.New(dErrors.CodeFileRejected, "unsupported file type: "+u.ContentType)
	}
	ext := strings.ToLower(filepath.Ext(u.Name))
	if !contains(extensions, ext) {
		return dErrors.New(dErrors.CodeFileRejected, fmt.Sprintf("file extension %q does not match %s", ext, contentType))
	}
	if sniffable[contentType] {
		head := u.Data
		if len(head) > 512 {
			head = head[:512]
		}
		if detected := http.DetectContentType(head); detected != contentType {
			return dErrors.New(dErrors.CodeFileRejected, fmt.Sprintf("file content is %s, not %s", detected, contentType))
		}
	}
	return nil
}

func normalizeContentType(raw string) string {
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	return mediaType
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
