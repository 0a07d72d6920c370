package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// accent is the highlight used for the primary button and the selected chat
var accent = color.NRGBA{R: 0x2f, G: 0x80, B: 0x6f, A: 0xff}

// noteTheme wraps the built-in light or dark theme with a fixed variant and accent
type noteTheme struct {
	base    fyne.Theme
	variant fyne.ThemeVariant
}

func newCustomTheme(isDark bool) fyne.Theme {
	variant := theme.VariantLight
	if isDark {
		variant = theme.VariantDark
	}
	return &noteTheme{base: theme.DefaultTheme(), variant: variant}
}

func (t *noteTheme) Color(name fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNamePrimary, theme.ColorNameFocus:
		return accent
	case theme.ColorNameSelection:
		c := accent
		c.A = 0x40
		return c
	}
	// the configured variant wins over the OS preference
	return t.base.Color(name, t.variant)
}

func (t *noteTheme) Font(style fyne.TextStyle) fyne.Resource {
	return t.base.Font(style)
}

func (t *noteTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return t.base.Icon(name)
}

func (t *noteTheme) Size(name fyne.ThemeSizeName) float32 {
	if name == theme.SizeNameInnerPadding {
		return t.base.Size(name) + 2
	}
	return t.base.Size(name)
}
