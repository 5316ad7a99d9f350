package ui

import (
	"testing"

	"fyne.io/fyne/v2/theme"
	"github.com/stretchr/testify/assert"
)

func TestAwardThemeIsAlwaysLight(t *testing.T) {
	th := newAwardTheme()
	light := theme.DefaultTheme().Color(theme.ColorNameButton, theme.VariantLight)
	assert.Equal(t, light, th.Color(theme.ColorNameButton, theme.VariantDark))
	assert.Equal(t, light, th.Color(theme.ColorNameButton, theme.VariantLight))
	assert.Equal(t, th.Color(theme.ColorNamePrimary, theme.VariantLight), th.Color(theme.ColorNamePrimary, theme.VariantDark))
}
