package utils

import (
	"path/filepath"
	"strings"
)

// mediaExtensions is the closed set of file extensions treated as
// renameable media when expanding directories.
var mediaExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".m4v":  true,
	".mpg":  true,
	".mpeg": true,
	".flv":  true,
	".wmv":  true,
	".webm": true,
	".ts":   true,
}

// IsMediaFile reports whether path carries a known media extension.
func IsMediaFile(path string) bool {
	return mediaExtensions[strings.ToLower(filepath.Ext(path))]
}
