package auth_test

import (
	"testing"

	"github.com/mfontaine/aegis/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndComparePassword(t *testing.T) {
	hash, err := auth.HashPassword("Correct-Horse-7")
	require.NoError(t, err)
	assert.NotEqual(t, "Correct-Horse-7", hash)

	assert.NoError(t, auth.ComparePassword(hash, "Correct-Horse-7"))
	assert.Error(t, auth.ComparePassword(hash, "wrong-password"))
}

func TestHashPassword_EmptyRejected(t *testing.T) {
	_, err := auth.HashPassword("")
	assert.Error(t, err)
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid password", "Str0ngEnough", false},
		{"too short", "Ab1", true},
		{"missing uppercase", "alllower123", true},
		{"missing lowercase", "ALLUPPER123", true},
		{"missing digit", "NoDigitsHere", true},
		{"common password", "Password123", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := auth.ValidatePassword(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
