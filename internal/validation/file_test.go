package validation

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestDetectFile(t *testing.T) {
	png := "\x89PNG\r\n\x1a\n" + strings.Repeat("\x00", 16)

	tests := []struct {
		name    string
		file    string
		content string
		size    int64
		want    string
		wantErr error
	}{
		{"png by content", "logo.bin", png, 24, "image/png", nil},
		{"pdf", "brief.pdf", "%PDF-1.7\n", 9, "application/pdf", nil},
		{"svg by extension", "icon.svg", `<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg"/>`, 60, "image/svg+xml", nil},
		{"plain text", "notes", "hello", 5, "text/plain", nil},
		{"html rejected", "page.html", "<!DOCTYPE html><html></html>", 28, "", ErrFileType},
		{"executable rejected", "setup.exe", "MZ\x90\x00", 4, "", ErrFileType},
		{"too large", "big.pdf", "%PDF-1.7\n", AssetConstraints.MaxSize + 1, "", ErrFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := strings.NewReader(tt.content)
			got, err := DetectFile(r, tt.file, tt.size, AssetConstraints)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}

			rest, _ := io.ReadAll(r)
			if string(rest) != tt.content {
				t.Error("reader was not rewound")
			}
		})
	}
}
