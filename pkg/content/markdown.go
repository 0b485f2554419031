package content

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/psantana5/agencysite/pkg/models"
)

const wordsPerMinute = 200

// Raw HTML in post bodies is dropped; goldmark only passes it through with html.WithUnsafe.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderMarkdown converts a Markdown post body to HTML
func RenderMarkdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ReadingMinutes estimates reading time at 200 words per minute, never less than one
func ReadingMinutes(text string) int {
	words := len(strings.Fields(text))
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}

// preparePost fills the derived fields of a post
func preparePost(p *models.BlogPost) error {
	html, err := RenderMarkdown(p.Body)
	if err != nil {
		return err
	}
	p.BodyHTML = html
	p.ReadingMinutes = ReadingMinutes(p.Body)
	return nil
}
