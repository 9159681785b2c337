package storage

import (
	"testing"

	"estate-agent/web/types"
)

func TestSessionsKey(t *testing.T) {
	tests := []struct {
		name     string
		identity types.Identity
		want     string
	}{
		{
			name:     "signed in user",
			identity: types.Identity{ID: "u-42", Name: "Dana"},
			want:     "sessions/u-42",
		},
		{
			name:     "guest",
			identity: types.Guest(),
			want:     "sessions/guest",
		},
		{
			name:     "zero identity has no home",
			identity: types.Identity{},
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SessionsKey(tt.identity); got != tt.want {
				t.Errorf("SessionsKey(%v) = %q, want %q", tt.identity, got, tt.want)
			}
		})
	}
}
