package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utellme/utellme/internal/apperr"
)

func TestValidateUserName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"too short", "Al", true},
		{"min length", "Ada", false},
		{"max length", strings.Repeat("a", 35), false},
		{"too long", strings.Repeat("a", 36), true},
		{"multibyte counts runes", "Zoë", false},
		{"whitespace only", NormalizeName("     "), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUserName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalizeName(t *testing.T) {
	decomposed := "  Zoë  "
	got := NormalizeName(decomposed)
	assert.Equal(t, "Zoë", got)
	assert.NoError(t, ValidateUserName(got))
}

func TestValidateProjectName(t *testing.T) {
	assert.Error(t, ValidateProjectName(""))
	assert.NoError(t, ValidateProjectName("T"))
	assert.NoError(t, ValidateProjectName(strings.Repeat("x", 75)))
	assert.Error(t, ValidateProjectName(strings.Repeat("x", 76)))
}

func TestValidateColor(t *testing.T) {
	for _, c := range []string{"#fff", "#FFF", "#ff0000", "#0a0B0c"} {
		assert.NoError(t, ValidateColor(c), c)
	}
	for _, c := range []string{"", "fff", "#ffff", "#ff00000", "#ggg", "red"} {
		assert.Error(t, ValidateColor(c), c)
	}
}

func TestStruct(t *testing.T) {
	type input struct {
		ProjectID string `json:"projectId" validate:"required"`
		Rating    int    `json:"rating" validate:"min=1,max=5"`
		Title     string `json:"title" validate:"max=5"`
	}

	require.NoError(t, Struct(&input{ProjectID: "p1", Rating: 3}))

	err := Struct(&input{Rating: 6, Title: "toolong"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeBadRequest))

	fields := apperr.As(err).Fields
	assert.Equal(t, "is required", fields["projectId"])
	assert.Equal(t, "must be at most 5", fields["rating"])
	assert.Equal(t, "must be at most 5 characters", fields["title"])
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("ada@example.com"))
	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("not-an-email"))
}
