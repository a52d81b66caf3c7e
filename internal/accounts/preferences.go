package accounts

import (
	"context"

	"smartattend/internal/i18n"
	"smartattend/internal/store"
)

const (
	themeDark  = "dark"
	themeLight = "light"
)

// Preferences are the per-device display settings.
type Preferences struct {
	DarkMode bool          `json:"darkMode"`
	Language i18n.Language `json:"language"`
}

// Preferences reads the theme and language, with light mode and French as defaults.
func (s *Service) Preferences(ctx context.Context) Preferences {
	var theme, lang string
	store.GetJSON(ctx, s.store, store.KeyTheme, &theme)
	store.GetJSON(ctx, s.store, store.KeyLanguage, &lang)

	l, ok := i18n.Parse(lang)
	if !ok {
		l = i18n.Default
	}
	return Preferences{DarkMode: theme == themeDark, Language: l}
}

// SetTheme stores the theme flag.
func (s *Service) SetTheme(ctx context.Context, dark bool) error {
	theme := themeLight
	if dark {
		theme = themeDark
	}
	return store.SetJSON(ctx, s.store, store.KeyTheme, theme)
}

// SetLanguage stores the interface language.
func (s *Service) SetLanguage(ctx context.Context, l i18n.Language) error {
	return store.SetJSON(ctx, s.store, store.KeyLanguage, string(l))
}

// DarkMode reports whether the dark theme is selected.
func (s *Service) DarkMode(ctx context.Context) bool {
	return s.Preferences(ctx).DarkMode
}

// Language returns the interface language.
func (s *Service) Language(ctx context.Context) i18n.Language {
	return s.Preferences(ctx).Language
}
