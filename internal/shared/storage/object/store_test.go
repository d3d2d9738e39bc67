package object

import (
	"errors"
	"testing"
)

func TestCleanKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "uploads/u1/d1/deck.pdf", want: "uploads/u1/d1/deck.pdf"},
		{key: "/uploads//u1/d1/deck.pdf", want: "uploads/u1/d1/deck.pdf"},
		{key: "uploads/../secrets", wantErr: true},
		{key: "   ", wantErr: true},
	}
	for _, tt := range tests {
		got, err := CleanKey(tt.key)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("CleanKey(%q) expected ErrInvalidKey, got %v", tt.key, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("CleanKey(%q): %v", tt.key, err)
		}
		if got != tt.want {
			t.Fatalf("CleanKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
