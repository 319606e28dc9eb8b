package mattermost

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mmhook/internal/types"
)

func TestIsAbsoluteURI(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"https://example.com/icon.gif", true},
		{"http://localhost:8065/hooks/abc", true},
		{"ftp://files.example.com", true},
		{"//github.com", false},
		{"//host/path", false},
		{"relative/path", false},
		{"/absolute/path", false},
		{"mailto:someone@example.com", false},
		{"https://", false},
		{"http://:80", false},
		{"", false},
		{" https://example.com", false},
		{"https://exa mple.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAbsoluteURI(tt.raw))
		})
	}
}

func TestFilterURI_AcceptsStringsAndParsedURIs(t *testing.T) {
	raw := "https://example.com/avatar.png?size=64"
	parsed, err := url.Parse(raw)
	require.NoError(t, err)

	for name, v := range map[string]any{
		"string":   raw,
		"*url.URL": parsed,
		"url.URL":  *parsed,
	} {
		t.Run(name, func(t *testing.T) {
			got, err := FilterURI(v, "icon_url")
			require.NoError(t, err)
			assert.Equal(t, raw, got)
		})
	}
}

func TestFilterURI_RejectsRelative(t *testing.T) {
	_, err := FilterURI("//github.com", "author_link")
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationInvalidURI, appErr.Code)
	assert.Equal(t, "author_link", appErr.Details["field"])
	assert.Contains(t, appErr.Message, "author_link")
}

func TestFilterURI_RejectsOtherTypes(t *testing.T) {
	var nilURL *url.URL
	for name, v := range map[string]any{
		"int":      42,
		"nil":      nil,
		"nil *URL": nilURL,
		"bytes":    []byte("https://example.com"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := FilterURI(v, "image_url")
			assert.True(t, types.HasCode(err, types.ErrCodeValidationInvalidType), "got %v", err)
		})
	}
}

func TestFilterString(t *testing.T) {
	got, err := FilterString("  padded  ", "username")
	require.NoError(t, err)
	assert.Equal(t, "  padded  ", got, "FilterString must not trim")

	_, err = FilterString(12, "username")
	require.Error(t, err)
	assert.True(t, types.HasCode(err, types.ErrCodeValidationInvalidType))
	assert.Contains(t, err.Error(), "username")
}

func TestIsEmptyValue(t *testing.T) {
	var nilMap map[string]any
	var nilURL *url.URL

	tests := []struct {
		name string
		v    any
		want bool
	}{
		{"nil", nil, true},
		{"empty string", "", true},
		{"empty any slice", []any{}, true},
		{"empty map slice", []map[string]any{}, true},
		{"empty map", map[string]any{}, true},
		{"nil map", nilMap, true},
		{"nil pointer", nilURL, true},
		{"text", "x", false},
		{"whitespace", " ", false},
		{"false", false, false},
		{"zero", 0, false},
		{"list", []Field{{Title: "a"}}, false},
		{"map", map[string]any{"k": ""}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEmptyValue(tt.v))
		})
	}
}
