package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		want  string
		valid bool
	}{
		{"empty", "", "", true},
		{"blank", "   ", "", true},
		{"local landline", "6123 4567", "+6561234567", true},
		{"local mobile with country code", "+65 8123-4567", "+6581234567", true},
		{"foreign with country code", "+1 650-253-0000", "+16502530000", true},
		{"foreign without country code", "(650) 253-0000", "", false},
		{"too short", "555-0100", "", false},
		{"not a number", "call me", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, verr := NormalizePhone(tt.raw)
			if !tt.valid {
				require.NotNil(t, verr)
				assert.Equal(t, "phone number is not valid", verr.Fields["phone"])
				return
			}
			assert.Nil(t, verr)
			assert.Equal(t, tt.want, got)
		})
	}
}
