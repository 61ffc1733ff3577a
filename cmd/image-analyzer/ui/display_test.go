package ui

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/spherical/image-analyzer/internal/domain"
)

func capture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	color.NoColor = true
	var stdout, stderr bytes.Buffer
	SetOutput(&stdout, &stderr)
	return &stdout, &stderr
}

func TestWrap(t *testing.T) {
	lines := wrap("the quick brown fox jumps over the lazy dog", 10)
	for _, l := range lines {
		assert.LessOrEqual(t, utf8.RuneCountInString(l), 10)
	}
	assert.Equal(t, "the quick brown fox jumps over the lazy dog", strings.Join(lines, " "))

	assert.Equal(t, []string{"-"}, wrap("", 10))
	assert.Equal(t, []string{"abcde", "fghij", "k"}, wrap("abcdefghijk", 5))
	assert.Equal(t, []string{"a", "", "b"}, wrap("a\n\nb", 5))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "(not set)", MaskSecret(""))
	assert.Equal(t, "***", MaskSecret("abc"))
	assert.Equal(t, "*****6789", MaskSecret("123456789"))
}

func TestResultCards(t *testing.T) {
	stdout, _ := capture(t)

	ResultCards(&domain.ExtractionResult{
		OriginalTitle: "Recibo",
		OriginalText:  "Pan 2,50",
		EnglishTitle:  "Receipt",
		EnglishText:   "Bread 2.50",
		ContentType:   "receipt",
		AIArtStyle:    "watercolor",
	})

	got := stdout.String()
	for _, want := range []string{"Original", "English", "Content", "Recibo", "Bread 2.50", "watercolor"} {
		assert.Contains(t, got, want)
	}
	assert.Equal(t, 3, strings.Count(got, "┌"))
}

func TestEmailDraft_CopyFormat(t *testing.T) {
	stdout, _ := capture(t)

	EmailDraft(&domain.EmailDraft{Subject: "Hello", Body: "Body text"}, true)
	assert.Equal(t, "Subject: Hello\n\nBody text\n", stdout.String())
}

func TestConfiguration_MasksKey(t *testing.T) {
	stdout, _ := capture(t)

	Configuration("artifacts/a/users/u/configurations/app-config", domain.AppConfiguration{
		APIKey:        "secret-key-1234",
		FieldMappings: map[string]string{domain.FieldSummary: "G"},
	})

	got := stdout.String()
	assert.NotContains(t, got, "secret-key")
	assert.Contains(t, got, "1234")
	assert.Contains(t, got, "summary")
}
