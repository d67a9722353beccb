package validation

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

var (
	ErrFileTooLarge = errors.New("file too large")
	ErrFileType     = errors.New("file type not allowed")
)

// FileConstraints defines what an upload may be
type FileConstraints struct {
	AllowedMimeTypes map[string]bool
	MaxSize          int64
}

// AssetConstraints covers the deliverables staff share in a project's asset
// library.
var AssetConstraints = FileConstraints{
	AllowedMimeTypes: map[string]bool{
		"image/jpeg":       true,
		"image/png":        true,
		"image/webp":       true,
		"image/gif":        true,
		"image/svg+xml":    true,
		"application/pdf":  true,
		"application/zip":  true,
		"video/mp4":        true,
		"text/plain":       true,
		"text/csv":         true,
		"font/woff2":       true,
		"application/json": true,
	},
	MaxSize: 500 << 20, // 500MB
}

// DetectFile returns the content type of an upload and checks it against the
// constraints. The type is sniffed from the first bytes; when sniffing only
// yields a generic type the file extension decides. file is rewound.
func DetectFile(file io.ReadSeeker, name string, size int64, constraints FileConstraints) (string, error) {
	if size > constraints.MaxSize {
		return "", fmt.Errorf("%w: maximum size is %d MB", ErrFileTooLarge, constraints.MaxSize>>20)
	}

	// http.DetectContentType reads max 512 bytes
	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	_, err = file.Seek(0, io.SeekStart)
	if err != nil {
		return "", fmt.Errorf("failed to reset file pointer: %w", err)
	}

	detected := baseType(http.DetectContentType(buffer[:n]))
	if generic(detected) {
		if byExt := baseType(mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))); byExt != "" {
			detected = byExt
		}
	}

	if !constraints.AllowedMimeTypes[detected] {
		return "", fmt.Errorf("%w (detected: %s)", ErrFileType, detected)
	}
	return detected, nil
}

func baseType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return mediaType
}

func generic(mediaType string) bool {
	switch mediaType {
	case "", "application/octet-stream", "text/plain", "text/xml":
		return true
	}
	return false
}
