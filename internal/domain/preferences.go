package domain

// ============================================================
// Preferences (theme + card customization)
// ============================================================

// Color modes accepted by the theme store.
const (
	ColorModeLight  = "light"
	ColorModeDark   = "dark"
	ColorModeSystem = "system"
)

// Defaults applied to a device with no stored preferences.
const (
	DefaultHeroTheme      = "classic"
	DefaultColorMode      = ColorModeSystem
	DefaultCardTemplateID = "classic"
	DefaultCardFont       = "Bebas Neue"
	DefaultCardFontColor  = "#FFFFFF"
	DefaultCardFontSize   = 18
)

// ThemePrefs is the persisted state of the theme store.
type ThemePrefs struct {
	HeroTheme string `json:"heroTheme"`
	ColorMode string `json:"colorMode"`
}

// CardPrefs is the persisted state of the card-customization store.
type CardPrefs struct {
	TemplateID string `json:"cardTemplateId"`
	Font       string `json:"font"`
	FontColor  string `json:"fontColor"`
	FontSize   int    `json:"fontSize"`
}

// PreferenceSnapshot combines both preference stores.
type PreferenceSnapshot struct {
	HeroTheme      string   `json:"heroTheme"`
	ColorMode      string   `json:"colorMode"`
	CardTemplateID string   `json:"cardTemplateId"`
	Font           string   `json:"font"`
	FontColor      string   `json:"fontColor"`
	FontSize       int      `json:"fontSize"`
	RootClasses    []string `json:"rootClasses"`
}

// Settings returns the snapshot in the shape stored remotely.
func (s PreferenceSnapshot) Settings() ProfileSettings {
	return ProfileSettings{
		ColorMode: s.ColorMode,
		Card: CardSettings{
			TemplateID: s.CardTemplateID,
			Font:       s.Font,
			FontColor:  s.FontColor,
			FontSize:   s.FontSize,
		},
	}
}

// PreferencesUpdate is the body for PUT /v1/preferences.
type PreferencesUpdate struct {
	HeroTheme      *string `json:"heroTheme,omitempty" validate:"omitempty,min=1,max=40"`
	ColorMode      *string `json:"colorMode,omitempty" validate:"omitempty,oneof=light dark system"`
	CardTemplateID *string `json:"cardTemplateId,omitempty" validate:"omitempty,min=1,max=64"`
	Font           *string `json:"font,omitempty" validate:"omitempty,min=1,max=64"`
	FontColor      *string `json:"fontColor,omitempty" validate:"omitempty,hexcolor"`
	FontSize       *int    `json:"fontSize,omitempty" validate:"omitempty,min=8,max=48"`
}
