package ui

import (
	"github.com/charmbracelet/glamour"
)

// maxReadableWidth caps word wrap on wide terminals.
const maxReadableWidth = 100

// RenderMarkdown renders markdown for the terminal. Without color, or when
// rendering fails, the original text is returned unchanged so the output
// stays parseable.
func RenderMarkdown(markdown string) string {
	if !ShouldUseColor() {
		return markdown
	}
	return renderMarkdown(markdown, min(Width(), maxReadableWidth), glamour.WithAutoStyle())
}

func renderMarkdown(markdown string, width int, style glamour.TermRendererOption) string {
	renderer, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return markdown
	}
	rendered, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return rendered
}
