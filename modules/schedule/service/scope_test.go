package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseScope(t *testing.T) {
	tests := []struct {
		raw     string
		want    MutationScope
		wantErr bool
	}{
		{raw: "", want: ScopeThis},
		{raw: "this", want: ScopeThis},
		{raw: "following", want: ScopeFollowing},
		{raw: "all", wantErr: true},
		{raw: "THIS", wantErr: true},
	}

	for _, tt := range tests {
		t.Run("scope "+tt.raw, func(t *testing.T) {
			got, err := ParseScope(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
