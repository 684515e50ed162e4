package services

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"

	"bytedge/internal/logger"
)

// DefaultWordWrap is the column width answers are wrapped to.
const DefaultWordWrap = 80

// MarkdownService renders agent answers for the terminal using Glamour.
type MarkdownService struct {
	initialized bool
	style       string
	width       int
	renderer    *glamour.TermRenderer
}

// NewMarkdownService creates a MarkdownService. style is one of GetAvailableStyles;
// an empty style selects "auto", which degrades to "notty" when the terminal has no colour.
func NewMarkdownService(style string, width int) *MarkdownService {
	if style == "" {
		style = "auto"
	}
	if width <= 0 {
		width = DefaultWordWrap
	}
	return &MarkdownService{style: strings.ToLower(style), width: width}
}

// Name returns the service name "markdown".
func (m *MarkdownService) Name() string {
	return "markdown"
}

// Initialize builds the Glamour renderer.
func (m *MarkdownService) Initialize() error {
	if !m.isKnownStyle(m.style) {
		return fmt.Errorf("unknown markdown style %q", m.style)
	}

	style := m.style
	if style == "auto" && termenv.EnvColorProfile() == termenv.Ascii {
		style = "notty"
	}

	var styleOpt glamour.TermRendererOption
	if style == "auto" {
		styleOpt = glamour.WithAutoStyle()
	} else {
		styleOpt = glamour.WithStandardStyle(style)
	}

	renderer, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(m.width))
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}

	m.renderer = renderer
	m.initialized = true
	logger.Debug("MarkdownService initialized", "style", style, "width", m.width)
	return nil
}

// Render renders markdown to ANSI terminal output.
func (m *MarkdownService) Render(markdown string) (string, error) {
	if !m.initialized {
		return "", fmt.Errorf("markdown service not initialized")
	}
	if strings.TrimSpace(markdown) == "" {
		return "", fmt.Errorf("markdown content cannot be empty")
	}

	rendered, err := m.renderer.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return rendered, nil
}

// RenderPlain renders markdown and strips every escape sequence, for logs and pipes.
func (m *MarkdownService) RenderPlain(markdown string) (string, error) {
	rendered, err := m.Render(markdown)
	if err != nil {
		return "", err
	}
	return ansi.Strip(rendered), nil
}

// GetAvailableStyles returns the accepted style names.
func (m *MarkdownService) GetAvailableStyles() []string {
	return []string{"auto", "dark", "light", "notty", "ascii"}
}

func (m *MarkdownService) isKnownStyle(style string) bool {
	for _, s := range m.GetAvailableStyles() {
		if s == style {
			return true
		}
	}
	return false
}
