package sanitize

import (
	"mime"
	"strings"
)

// MaxUploadSize is the largest accepted import file.
const MaxUploadSize int64 = 10 << 20

var allowedUploadTypes = map[string]bool{
	"application/json": true,
	"text/json":        true,
}

// FileInfo describes an upload before its contents are read.
type FileInfo struct {
	Name     string
	Size     int64
	MimeType string
}

// UploadResult is the outcome of ValidateFileUpload. Error holds the message
// of the first failing check.
type UploadResult struct {
	IsValid bool
	Error   string
}

// ValidateFileUpload gates an import file. Checks run in a fixed order and the
// first failure is reported on its own.
func ValidateFileUpload(f FileInfo) UploadResult {
	if f.Size > MaxUploadSize {
		return UploadResult{Error: "File size must be less than 10MB"}
	}
	if !allowedUploadTypes[mediaType(f.MimeType)] {
		return UploadResult{Error: "Only JSON files are allowed"}
	}
	if !strings.HasSuffix(strings.ToLower(f.Name), ".json") {
		return UploadResult{Error: "File must have .json extension"}
	}
	if FileName(f.Name) == "" {
		return UploadResult{Error: "Invalid file name"}
	}
	return UploadResult{IsValid: true}
}

func mediaType(raw string) string {
	mt, _, err := mime.ParseMediaType(strings.TrimSpace(raw))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	return mt
}
