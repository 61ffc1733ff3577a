package ui

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/spherical/image-analyzer/internal/domain"
)

const cardWidth = 72

var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	warnColor    = color.New(color.FgYellow)
)

// Message displays a simple message.
func Message(format string, args ...interface{}) {
	fmt.Fprintf(out, format, args...)
	fmt.Fprintln(out)
}

// Error displays an error message to stderr.
func Error(format string, args ...interface{}) {
	errorColor.Fprintf(errOut, "✗ %s\n", fmt.Sprintf(format, args...))
}

// Success displays a success message.
func Success(format string, args ...interface{}) {
	successColor.Fprintf(out, "✓ %s\n", fmt.Sprintf(format, args...))
}

// Warning displays a warning message.
func Warning(format string, args ...interface{}) {
	warnColor.Fprintf(out, "⚠ %s\n", fmt.Sprintf(format, args...))
}

// Info displays an informational message.
func Info(format string, args ...interface{}) {
	fmt.Fprintf(out, "ℹ %s\n", fmt.Sprintf(format, args...))
}

// Section displays a section header.
func Section(title string) {
	fmt.Fprintf(out, "\n%s\n", titleColor.Sprint(title))
	fmt.Fprintf(out, "%s\n\n", strings.Repeat("=", utf8.RuneCountInString(title)))
}

// Card displays a titled block of labelled values, wrapping long text.
func Card(title string, fields [][2]string) {
	horizontal := strings.Repeat("─", cardWidth+2)

	fmt.Fprintf(out, "┌%s┐\n", horizontal)
	fmt.Fprintf(out, "│ %s%s │\n", titleColor.Sprint(title), pad(title))
	fmt.Fprintf(out, "├%s┤\n", horizontal)
	for i, f := range fields {
		if i > 0 {
			fmt.Fprintf(out, "│ %s │\n", strings.Repeat(" ", cardWidth))
		}
		label := f[0] + ":"
		fmt.Fprintf(out, "│ %s%s │\n", label, pad(label))
		for _, line := range wrap(f[1], cardWidth) {
			fmt.Fprintf(out, "│ %s%s │\n", line, pad(line))
		}
	}
	fmt.Fprintf(out, "└%s┘\n", horizontal)
}

// ResultCards renders an extraction as two text cards plus a combined
// type/style card.
func ResultCards(r *domain.ExtractionResult) {
	if r == nil {
		return
	}
	Card("Original", [][2]string{
		{"Title", r.OriginalTitle},
		{"Text", r.OriginalText},
	})
	Card("English", [][2]string{
		{"Title", r.EnglishTitle},
		{"Text", r.EnglishText},
	})
	Card("Content", [][2]string{
		{"Type", r.ContentType},
		{"AI art style", r.AIArtStyle},
	})
}

// Summary renders a summary card.
func Summary(text string) {
	Card("Summary", [][2]string{{"Summary", text}})
}

// EmailDraft renders an email draft. With copyFormat the plain clipboard
// text is printed instead of a card.
func EmailDraft(d *domain.EmailDraft, copyFormat bool) {
	if d == nil {
		return
	}
	if copyFormat {
		fmt.Fprintln(out, d.ClipboardText())
		return
	}
	Card("Email draft", [][2]string{
		{"Subject", d.Subject},
		{"Body", d.Body},
	})
}

// WebhookStatus prints the final webhook message.
func WebhookStatus(st domain.WebhookStatus) {
	switch st.State {
	case domain.WebhookSuccess:
		Success("%s", st.Message)
	case domain.WebhookFailed:
		Warning("%s", st.Message)
	}
}

// Configuration lists a configuration document with the API key masked.
func Configuration(path string, cfg domain.AppConfiguration) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Document\t%s\n", path)
	fmt.Fprintf(w, "API key\t%s\n", MaskSecret(cfg.APIKey))
	fmt.Fprintf(w, "Webhook URL\t%s\n", orNone(cfg.WebhookURL))
	fmt.Fprintf(w, "Sheet ID\t%s\n", orNone(cfg.GoogleSheetID))
	fmt.Fprintf(w, "Sheet name\t%s\n", orNone(cfg.SheetName))
	_ = w.Flush()

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Field mappings:")
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, field := range domain.ContentFields {
		fmt.Fprintf(w, "  %s\t%s\n", field, orNone(cfg.FieldMappings[field]))
	}
	_ = w.Flush()
}

// MaskSecret hides all but the last four characters.
func MaskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	n := utf8.RuneCountInString(s)
	if n <= 4 {
		return strings.Repeat("*", n)
	}
	runes := []rune(s)
	return strings.Repeat("*", n-4) + string(runes[n-4:])
}

func orNone(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

func pad(s string) string {
	n := cardWidth - utf8.RuneCountInString(s)
	if n <= 0 {
		return ""
	}
	return strings.Repeat(" ", n)
}

// wrap splits text into lines of at most width runes, breaking on spaces
// where possible and keeping explicit newlines.
func wrap(text string, width int) []string {
	if text == "" {
		return []string{"-"}
	}
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		var line []rune
		for _, word := range words {
			w := []rune(word)
			for len(w) > width {
				if len(line) > 0 {
					lines = append(lines, string(line))
					line = nil
				}
				lines = append(lines, string(w[:width]))
				w = w[width:]
			}
			switch {
			case len(line) == 0:
				line = append(line, w...)
			case len(line)+1+len(w) <= width:
				line = append(line, ' ')
				line = append(line, w...)
			default:
				lines = append(lines, string(line))
				line = append([]rune(nil), w...)
			}
		}
		if len(line) > 0 {
			lines = append(lines, string(line))
		}
	}
	return lines
}

// Newline prints an empty line.
func Newline() {
	fmt.Fprintln(out)
}
