package emoji

import (
	"testing"

	"github.com/agentstation/kbmirror/pkg/documents"
)

func TestForStatus(t *testing.T) {
	tests := []struct {
		status documents.Status
		want   string
	}{
		{documents.StatusComplete, Success},
		{documents.StatusFailed, Error},
		{documents.StatusPending, Pending},
		{documents.StatusUnknown, Unknown},
	}

	for _, tt := range tests {
		if got := ForStatus(tt.status); got != tt.want {
			t.Errorf("ForStatus(%v) = %q, want %q", tt.status, got, tt.want)
		}
	}
}
