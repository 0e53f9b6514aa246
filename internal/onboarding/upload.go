package onboarding

import (
	"bytes"
	"io"
	"net/http"
	"path"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/diewo77/go-onboarding/internal/apperr"
	"github.com/diewo77/go-onboarding/internal/models"
	"github.com/diewo77/go-onboarding/validation"
)

// MaxUploadSize is the largest accepted document, in bytes.
const MaxUploadSize = 5 << 20

// AllowedContentTypes are the sniffed MIME types accepted for documents.
var AllowedContentTypes = []string{"application/pdf", "image/jpeg", "image/png"}

// UploadInput is one document submission. Size is the size declared by the
// client; the content is measured again while reading.
type UploadInput struct {
	Type     models.DocumentType
	FileName string
	Size     int64
	Content  io.Reader
}

type checkedUpload struct {
	docType     models.DocumentType
	fileName    string
	contentType string
	data        []byte
}

// checkUpload enforces type, name, size and content rules before any I/O
// against the stores.
func checkUpload(in UploadInput) (*checkedUpload, error) {
	v := make(validation.Violations)
	if !in.Type.Valid() {
		v["type"] = "unknown_document_type"
	}
	name := cleanFileName(in.FileName)
	if name == "" {
		v["file"] = "missing_file_name"
	}
	if in.Size > MaxUploadSize {
		v["file"] = "file_too_large"
	}
	if in.Content == nil {
		v["file"] = "missing_file"
	}
	if !v.Empty() {
		return nil, apperr.Validation("invalid upload", v)
	}

	data, err := io.ReadAll(io.LimitReader(in.Content, MaxUploadSize+1))
	if err != nil {
		return nil, apperr.Validation("could not read upload", map[string]string{"file": "unreadable"})
	}
	if len(data) > MaxUploadSize {
		return nil, apperr.Validation("file exceeds 5 MiB", map[string]string{"file": "file_too_large"})
	}
	if len(data) == 0 {
		return nil, apperr.Validation("file is empty", map[string]string{"file": "empty_file"})
	}
	contentType := sniff(data)
	if !slices.Contains(AllowedContentTypes, contentType) {
		return nil, apperr.Validation("only PDF, JPEG and PNG files are accepted", map[string]string{"file": "unsupported_type"})
	}
	return &checkedUpload{docType: in.Type, fileName: name, contentType: contentType, data: data}, nil
}

func sniff(data []byte) string {
	ct := http.DetectContentType(data)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}

// cleanFileName strips any directory part a client may send.
func cleanFileName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return ""
	}
	base := path.Base(name)
	if base == "." || base == ".." || base == "/" {
		return ""
	}
	return base
}

// BlobKey is the storage key of an applicant's document file.
func BlobKey(userID uuid.UUID, docType models.DocumentType, fileName string) string {
	return userID.String() + "/" + string(docType) + "/" + fileName
}

func (c *checkedUpload) reader() io.Reader { return bytes.NewReader(c.data) }
