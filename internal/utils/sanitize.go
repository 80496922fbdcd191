package utils

import (
	"path/filepath"
	"strings"
	"unicode"
)

const fallbackName = "evidence"

// SanitizeFilename reduces a client-supplied filename to a single safe path
// component. Anything that could break headers, logs, or the filesystem is
// replaced with an underscore.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)

	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case r == ' ', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, name)

	cleaned = strings.Trim(cleaned, " .")
	if cleaned == "" || strings.Trim(cleaned, ".") == "" {
		return fallbackName
	}

	if len(cleaned) > 255 {
		ext := filepath.Ext(cleaned)
		if ext != "" && len(ext) < 20 {
			cleaned = cleaned[:255-len(ext)] + ext
		} else {
			cleaned = cleaned[:255]
		}
	}

	return cleaned
}
