// Package format escapes and formats text for Telegram parse modes.
package format

import (
	"fmt"
	"html"
	"regexp"
)

const (
	// MarkdownV1 denotes Telegram markdown version 1.
	MarkdownV1 = 1
	// MarkdownV2 denotes Telegram markdown version 2.
	MarkdownV2 = 2
)

var (
	mdV1Specials = regexp.MustCompile("([_*`\\[])")
	mdV2Specials = regexp.MustCompile(`([_*\[\]()~` + "`" + `>#+\-=|{}.!\\])`)
)

// EscapeMarkdown escapes special characters for MarkdownV1 or V2.
func EscapeMarkdown(text string, version int) (string, error) {
	switch version {
	case MarkdownV1:
		return mdV1Specials.ReplaceAllString(text, `\$1`), nil
	case MarkdownV2:
		return mdV2Specials.ReplaceAllString(text, `\$1`), nil
	}
	return "", fmt.Errorf("unsupported markdown version: %d", version)
}

// EscapeHTML escapes text for ParseMode HTML.
func EscapeHTML(text string) string {
	return html.EscapeString(text)
}

// Code wraps text in an HTML <code> element.
func Code(text string) string {
	return "<code>" + EscapeHTML(text) + "</code>"
}

// Link renders an HTML anchor; the label doubles as the URL when empty.
func Link(url, label string) string {
	if label == "" {
		label = url
	}
	return `<a href="` + EscapeHTML(url) + `">` + EscapeHTML(label) + "</a>"
}
