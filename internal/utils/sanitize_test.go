package utils

import (
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "incident.mp4", "incident.mp4"},
		{"spaces kept", "body cam 3.mp4", "body cam 3.mp4"},
		{"path stripped", "../../etc/passwd", "passwd"},
		{"windows separators", `..\..\clip.mp4`, "_.._clip.mp4"},
		{"control characters", "clip\x00\n.mp4", "clip__.mp4"},
		{"empty", "", "evidence"},
		{"only dots", "...", "evidence"},
		{"unicode letters kept", "доказательство.pdf", "доказательство.pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilenameLengthCap(t *testing.T) {
	long := strings.Repeat("a", 300) + ".mp4"
	got := SanitizeFilename(long)
	if len(got) != 255 {
		t.Errorf("len = %d, want 255", len(got))
	}
	if !strings.HasSuffix(got, ".mp4") {
		t.Errorf("extension lost: %q", got)
	}
}
