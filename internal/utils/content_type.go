package utils

import (
	"mime"
	"strings"
)

const DefaultContentType = "application/octet-stream"

var preferredExtensions = map[string]string{
	"image/jpeg":       "jpg",
	"image/png":        "png",
	"image/gif":        "gif",
	"image/webp":       "webp",
	"image/svg+xml":    "svg",
	"application/pdf":  "pdf",
	"application/zip":  "zip",
	"text/plain":       "txt",
	"text/html":        "html",
	"text/csv":         "csv",
	"text/calendar":    "ics",
	"application/json": "json",
}

// ExtensionForContentType returns an extension without the dot, "" when unknown.
func ExtensionForContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	if ext, ok := preferredExtensions[mediaType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	return ""
}

func ContentTypeOrDefault(contentType string) string {
	if strings.TrimSpace(contentType) == "" {
		return DefaultContentType
	}
	return contentType
}
