package evidrop

import "testing"

func TestItemSnapshotProgressRounds(t *testing.T) {
	const mib = 1024 * 1024

	tests := []struct {
		name string
		snap ItemSnapshot
		want int
	}{
		{"empty", ItemSnapshot{Size: 0, UploadedBytes: 0}, 0},
		{"nothing sent", ItemSnapshot{Size: 10 * mib}, 0},
		{"half", ItemSnapshot{Size: 10 * mib, UploadedBytes: 5 * mib}, 50},
		{"rounds up", ItemSnapshot{Size: 12 * mib, UploadedBytes: 5 * mib}, 42},
		{"rounds down", ItemSnapshot{Size: 12 * mib, UploadedBytes: 4 * mib}, 33},
		{"two of three chunks", ItemSnapshot{Size: 3 * mib, UploadedBytes: 2 * mib}, 67},
		{"all bytes but not completed", ItemSnapshot{Size: mib, UploadedBytes: mib}, 100},
		{"completed pins 100", ItemSnapshot{Size: mib, UploadedBytes: 0, Status: StatusCompleted}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.snap.Progress(); got != tt.want {
				t.Errorf("Progress() = %d, want %d", got, tt.want)
			}
		})
	}
}
