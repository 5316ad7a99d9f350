package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// awardTheme: светлая палитра с фиолетовым акцентом Twitch.
type awardTheme struct {
	base fyne.Theme
}

func newAwardTheme() fyne.Theme {
	return &awardTheme{base: theme.DefaultTheme()}
}

// Color всегда отдаёт светлый вариант независимо от настроек системы.
func (t *awardTheme) Color(name fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNameBackground:
		return color.NRGBA{R: 247, G: 246, B: 251, A: 255}
	case theme.ColorNamePrimary, theme.ColorNameHyperlink:
		return color.NRGBA{R: 145, G: 70, B: 255, A: 255}
	case theme.ColorNameForeground:
		return color.NRGBA{R: 24, G: 24, B: 27, A: 255}
	case theme.ColorNameInputBackground:
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	case theme.ColorNameDisabled:
		return color.NRGBA{R: 173, G: 173, B: 184, A: 255}
	default:
		return t.base.Color(name, theme.VariantLight)
	}
}

func (t *awardTheme) Font(style fyne.TextStyle) fyne.Resource {
	return t.base.Font(style)
}

func (t *awardTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return t.base.Icon(name)
}

func (t *awardTheme) Size(name fyne.ThemeSizeName) float32 {
	return t.base.Size(name)
}
