package console

import (
	"strconv"

	"pkt.systems/replee/core"
	"pkt.systems/replee/schema"
)

type rgb struct {
	r int
	g int
	b int
}

type consoleTheme struct {
	Name     schema.ThemeName
	ErrorFG  rgb
	OutputFG rgb
	PromptFG rgb
	Plain    bool
}

const ansiReset = "\x1b[0m"

var consoleThemes = map[schema.ThemeName]consoleTheme{
	"outrun": {
		Name:     "outrun",
		ErrorFG:  rgb{r: 255, g: 107, b: 107},
		OutputFG: rgb{r: 154, g: 163, b: 178},
		PromptFG: rgb{r: 255, g: 91, b: 189},
	},
	"gruvbox": {
		Name:     "gruvbox",
		ErrorFG:  rgb{r: 251, g: 73, b: 52},
		OutputFG: rgb{r: 146, g: 131, b: 116},
		PromptFG: rgb{r: 250, g: 189, b: 47},
	},
	"tokyo-midnight": {
		Name:     "tokyo-midnight",
		ErrorFG:  rgb{r: 247, g: 118, b: 142},
		OutputFG: rgb{r: 127, g: 133, b: 163},
		PromptFG: rgb{r: 122, g: 162, b: 247},
	},
	"plain": {
		Name:  "plain",
		Plain: true,
	},
}

func themeForName(name schema.ThemeName) consoleTheme {
	if name == "" {
		name = schema.DefaultTheme
	}
	if theme, ok := consoleThemes[name]; ok {
		return theme
	}
	return consoleThemes[schema.DefaultTheme]
}

func (t consoleTheme) palette() core.Palette {
	if t.Plain {
		return core.DefaultPalette
	}
	return core.Palette{
		Error:  ansiFgRGB(t.ErrorFG),
		Output: ansiFgRGB(t.OutputFG),
		Reset:  ansiReset,
	}
}

func (t consoleTheme) prompt(label string) string {
	if t.Plain || label == "" {
		return label
	}
	return ansiFgRGB(t.PromptFG) + label + ansiReset
}

func ansiFgRGB(c rgb) string {
	return "\x1b[38;2;" + strconv.Itoa(c.r) + ";" + strconv.Itoa(c.g) + ";" + strconv.Itoa(c.b) + "m"
}
