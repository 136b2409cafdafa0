package util

import (
	"net/http"
	"path/filepath"
	"strings"
)

// SniffMimeOCR returns the media token the Vision OCR API expects
// ("JPEG" | "PNG" | "PDF"), or "" when the bytes are not recognized.
func SniffMimeOCR(b []byte) string {
	// JPEG: FF D8
	if len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8 {
		return "JPEG"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if len(b) >= 8 &&
		b[0] == 0x89 && b[1] == 0x50 && b[2] == 0x4E && b[3] == 0x47 &&
		b[4] == 0x0D && b[5] == 0x0A && b[6] == 0x1A && b[7] == 0x0A {
		return "PNG"
	}
	// PDF: %PDF-
	if len(b) >= 5 && b[0] == '%' && b[1] == 'P' && b[2] == 'D' && b[3] == 'F' && b[4] == '-' {
		return "PDF"
	}
	return ""
}

// SniffMimeHTTP returns a standard media type for the given bytes.
func SniffMimeHTTP(b []byte) string {
	return http.DetectContentType(b)
}

// IsImageType reports whether the declared media type is a supported image.
func IsImageType(mediaType string) bool {
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case "image/jpeg", "image/jpg", "image/png", "image/webp", "image/gif", "image/bmp", "image/tiff":
		return true
	}
	return false
}

// IsPDFType reports whether the declared media type is PDF.
func IsPDFType(mediaType string) bool {
	return strings.ToLower(strings.TrimSpace(mediaType)) == "application/pdf"
}

// IsWordType reports whether the declared media type or the file extension
// points at a Word document.
func IsWordType(mediaType, filename string) bool {
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case "application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return true
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".doc", ".docx":
		return true
	}
	return false
}
