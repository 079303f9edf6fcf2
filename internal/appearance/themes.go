package appearance

import (
	"fmt"
	"strconv"

	"github.com/mrlokans/epubreader/internal/engine"
)

type palette struct {
	text       string
	background string
	// headings also recolours headings and inline spans
	headings bool
	// paragraphs also recolours paragraphs
	paragraphs bool
}

var palettes = map[Theme]palette{
	ThemeLight: {text: "#000000", background: "#ffffff"},
	ThemeDark:  {text: "#fafafa", background: "#1a1a1a", headings: true, paragraphs: true},
	ThemeSepia: {text: "#5f4b32", background: "#f6f1d1", paragraphs: true},
}

// FontSizeValue formats the font size the way the engine expects it.
func (s Settings) FontSizeValue() string {
	return fmt.Sprintf("%d%%", s.FontSize)
}

// Stylesheet builds the style rules registered under the theme's name.
// The result depends only on s, so registering it again is harmless.
func (s Settings) Stylesheet() engine.StyleRules {
	lineHeight := strconv.FormatFloat(s.LineHeight, 'f', -1, 64) + " !important"
	p, ok := palettes[s.Theme]
	if !ok {
		p = palettes[ThemeLight]
	}

	rules := engine.StyleRules{
		"body": {
			"line-height":    lineHeight,
			"padding-top":    "20px !important",
			"padding-bottom": "20px !important",
			"color":          p.text,
			"background":     p.background,
		},
		"p": {
			"line-height": lineHeight,
			"font-family": s.FontFamily + " !important",
		},
	}
	if p.paragraphs {
		rules["p"]["color"] = p.text
	}
	if p.headings {
		for _, sel := range []string{"h1", "h2", "h3", "h4", "h5", "h6", "span"} {
			rules[sel] = map[string]string{"color": p.text}
		}
	}
	return rules
}

// Apply pushes s onto a rendition's styling mechanism.
func Apply(themes engine.Themes, s Settings) {
	themes.FontSize(s.FontSizeValue())
	themes.Font(s.FontFamily)
	themes.Register(string(s.Theme), s.Stylesheet())
	themes.Select(string(s.Theme))
}
