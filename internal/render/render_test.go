package render

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderBold(t *testing.T) {
	req := require.New(t)
	out := NewMarkdown().Render("**hi**")
	req.Contains(out, "<strong>hi</strong>")
}

func TestRenderStripsScript(t *testing.T) {
	req := require.New(t)
	out := NewMarkdown().Render("hello <script>alert(1)</script>")
	req.NotContains(out, "<script>")
	req.Contains(out, "hello")
}

func TestRenderKeepsLinks(t *testing.T) {
	req := require.New(t)
	out := NewMarkdown().Render("[site](https://example.com)")
	req.Contains(out, `href="https://example.com"`)
}

func TestRenderDropsJavascriptURL(t *testing.T) {
	req := require.New(t)
	out := NewMarkdown().Render("[x](javascript:alert(1))")
	req.NotContains(out, "javascript:")
}
