// Package render converts user markdown into sanitized HTML.
package render

import (
	"bytes"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/roomchat/internal/logger"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer is the pure markdown to safe-HTML function consumed by the chat engine.
type Renderer interface {
	Render(text string) string
}

type Markdown struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func NewMarkdown() *Markdown {
	return &Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
		policy: Policy(),
	}
}

// Policy is the allow-list applied after markdown conversion.
func Policy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "strong", "em", "u", "s", "del", "ul", "ol", "li",
		"blockquote", "code", "pre", "h1", "h2", "h3", "h4", "h5", "h6", "hr")
	p.AllowAttrs("href", "title", "target").OnElements("a")
	p.AllowAttrs("src", "alt", "title", "width", "height").OnElements("img")
	p.AllowAttrs("class").Globally()
	p.AllowStandardURLs()
	p.RequireNoFollowOnLinks(false)
	return p
}

// Render never fails: a conversion error falls back to the escaped source text.
func (m *Markdown) Render(text string) string {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(text), &buf); err != nil {
		logger.Errorf("render markdown: %v", err)
		return m.policy.Sanitize(text)
	}
	return strings.TrimSpace(string(m.policy.SanitizeBytes(buf.Bytes())))
}
