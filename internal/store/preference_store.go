package store

import (
	"context"
	"strings"
	"sync"

	"github.com/burgerhero/burgerhero-bff/internal/domain"
	"github.com/burgerhero/burgerhero-bff/internal/port"

	"go.uber.org/zap"
)

// ============================================================
// Theme store
// ============================================================

// ThemeStore holds the hero theme and color mode of a device.
type ThemeStore struct {
	key    string
	state  port.StateStore
	logger *zap.Logger

	mu          sync.RWMutex
	prefs       domain.ThemePrefs
	rootClasses []string
}

// NewThemeStore restores the persisted theme or starts from the defaults.
func NewThemeStore(ctx context.Context, deviceID string, state port.StateStore, logger *zap.Logger) (*ThemeStore, error) {
	s := &ThemeStore{
		key:    "theme:" + deviceID,
		state:  state,
		logger: logger.With(zap.String("device_id", deviceID)),
		prefs:  domain.ThemePrefs{HeroTheme: domain.DefaultHeroTheme, ColorMode: domain.DefaultColorMode},
	}

	var p domain.ThemePrefs
	found, err := restore(ctx, state, s.key, &p, s.logger)
	if err != nil {
		return nil, err
	}
	if found {
		if p.HeroTheme != "" {
			s.prefs.HeroTheme = p.HeroTheme
		}
		if validColorMode(p.ColorMode) {
			s.prefs.ColorMode = p.ColorMode
		}
	}
	s.rootClasses = rootClasses(s.prefs)
	return s, nil
}

// SetHeroTheme changes the hero theme. Empty values are ignored.
func (s *ThemeStore) SetHeroTheme(ctx context.Context, hero string) error {
	hero = strings.TrimSpace(hero)
	if hero == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.HeroTheme = hero
	return s.persistLocked(ctx)
}

// SetColorMode changes the color mode.
func (s *ThemeStore) SetColorMode(ctx context.Context, mode string) error {
	if !validColorMode(mode) {
		return &domain.ErrValidation{Field: "colorMode", Message: "modo de cor inválido"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.ColorMode = mode
	return s.persistLocked(ctx)
}

// Apply recomputes the document-root classes from the current prefs and
// returns them. Calling it repeatedly yields the same set.
func (s *ThemeStore) Apply() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rootClasses = rootClasses(s.prefs)
	return append([]string(nil), s.rootClasses...)
}

// RootClasses returns the classes computed by the last Apply.
func (s *ThemeStore) RootClasses() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.rootClasses...)
}

// Prefs returns the current theme prefs.
func (s *ThemeStore) Prefs() domain.ThemePrefs {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

func (s *ThemeStore) persistLocked(ctx context.Context) error {
	if err := s.state.Save(ctx, s.key, s.prefs); err != nil {
		s.logger.Error("theme store: failed to persist", zap.Error(err))
		return err
	}
	return nil
}

func validColorMode(mode string) bool {
	return mode == domain.ColorModeLight || mode == domain.ColorModeDark || mode == domain.ColorModeSystem
}

// rootClasses mirrors the classes toggled on <html>: one theme-<hero> class
// and "dark" when the color mode forces it.
func rootClasses(p domain.ThemePrefs) []string {
	classes := []string{"theme-" + p.HeroTheme}
	if p.ColorMode == domain.ColorModeDark {
		classes = append(classes, "dark")
	}
	return classes
}

// ============================================================
// Card customization store
// ============================================================

// CardStore holds the membership card customization of a device.
type CardStore struct {
	key    string
	state  port.StateStore
	logger *zap.Logger

	mu    sync.RWMutex
	prefs domain.CardPrefs
}

// NewCardStore restores the persisted card prefs or starts from defaults.
func NewCardStore(ctx context.Context, deviceID string, state port.StateStore, logger *zap.Logger) (*CardStore, error) {
	s := &CardStore{
		key:    "card:" + deviceID,
		state:  state,
		logger: logger.With(zap.String("device_id", deviceID)),
		prefs:  defaultCard(),
	}

	var p domain.CardPrefs
	found, err := restore(ctx, state, s.key, &p, s.logger)
	if err != nil {
		return nil, err
	}
	if found {
		mergeCard(&s.prefs, p)
	}
	return s, nil
}

func defaultCard() domain.CardPrefs {
	return domain.CardPrefs{
		TemplateID: domain.DefaultCardTemplateID,
		Font:       domain.DefaultCardFont,
		FontColor:  domain.DefaultCardFontColor,
		FontSize:   domain.DefaultCardFontSize,
	}
}

// mergeCard copies the non-empty fields of src into dst.
func mergeCard(dst *domain.CardPrefs, src domain.CardPrefs) {
	if src.TemplateID != "" {
		dst.TemplateID = src.TemplateID
	}
	if src.Font != "" {
		dst.Font = src.Font
	}
	if src.FontColor != "" {
		dst.FontColor = src.FontColor
	}
	if src.FontSize > 0 {
		dst.FontSize = src.FontSize
	}
}

// SetTemplate selects a card template.
func (s *CardStore) SetTemplate(ctx context.Context, id string) error {
	return s.update(ctx, func(p *domain.CardPrefs) { p.TemplateID = id })
}

// SetFont changes the card font.
func (s *CardStore) SetFont(ctx context.Context, font string) error {
	return s.update(ctx, func(p *domain.CardPrefs) { p.Font = font })
}

// SetFontColor changes the card font color.
func (s *CardStore) SetFontColor(ctx context.Context, color string) error {
	return s.update(ctx, func(p *domain.CardPrefs) { p.FontColor = color })
}

// SetFontSize changes the card font size.
func (s *CardStore) SetFontSize(ctx context.Context, size int) error {
	if size <= 0 {
		return &domain.ErrValidation{Field: "fontSize", Message: "tamanho de fonte inválido"}
	}
	return s.update(ctx, func(p *domain.CardPrefs) { p.FontSize = size })
}

// Prefs returns the current card prefs.
func (s *CardStore) Prefs() domain.CardPrefs {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

func (s *CardStore) update(ctx context.Context, fn func(*domain.CardPrefs)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.prefs)
	if err := s.state.Save(ctx, s.key, s.prefs); err != nil {
		s.logger.Error("card store: failed to persist", zap.Error(err))
		return err
	}
	return nil
}

// ============================================================
// Both stores together
// ============================================================

// Preferences groups the theme and card stores of a device.
type Preferences struct {
	Theme *ThemeStore
	Card  *CardStore
}

// NewPreferences restores both stores.
func NewPreferences(ctx context.Context, deviceID string, state port.StateStore, logger *zap.Logger) (*Preferences, error) {
	theme, err := NewThemeStore(ctx, deviceID, state, logger)
	if err != nil {
		return nil, err
	}
	card, err := NewCardStore(ctx, deviceID, state, logger)
	if err != nil {
		return nil, err
	}
	return &Preferences{Theme: theme, Card: card}, nil
}

// Seed copies the hero theme and settings of a freshly built profile into
// the stores. Fields the profile leaves empty keep their local value.
func (p *Preferences) Seed(ctx context.Context, profile *domain.UserProfile) error {
	if profile == nil {
		return nil
	}
	if err := p.Theme.SetHeroTheme(ctx, profile.HeroTheme); err != nil {
		return err
	}
	if mode := profile.Settings.ColorMode; validColorMode(mode) {
		if err := p.Theme.SetColorMode(ctx, mode); err != nil {
			return err
		}
	}
	if card := profile.Settings.Card; card != (domain.CardSettings{}) {
		err := p.Card.update(ctx, func(c *domain.CardPrefs) {
			mergeCard(c, domain.CardPrefs{
				TemplateID: card.TemplateID,
				Font:       card.Font,
				FontColor:  card.FontColor,
				FontSize:   card.FontSize,
			})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Update applies a partial preferences update and re-applies the theme.
func (p *Preferences) Update(ctx context.Context, u domain.PreferencesUpdate) error {
	if u.HeroTheme != nil {
		if err := p.Theme.SetHeroTheme(ctx, *u.HeroTheme); err != nil {
			return err
		}
	}
	if u.ColorMode != nil {
		if err := p.Theme.SetColorMode(ctx, *u.ColorMode); err != nil {
			return err
		}
	}
	if u.CardTemplateID != nil {
		if err := p.Card.SetTemplate(ctx, *u.CardTemplateID); err != nil {
			return err
		}
	}
	if u.Font != nil {
		if err := p.Card.SetFont(ctx, *u.Font); err != nil {
			return err
		}
	}
	if u.FontColor != nil {
		if err := p.Card.SetFontColor(ctx, *u.FontColor); err != nil {
			return err
		}
	}
	if u.FontSize != nil {
		if err := p.Card.SetFontSize(ctx, *u.FontSize); err != nil {
			return err
		}
	}
	p.Theme.Apply()
	return nil
}

// Snapshot returns the combined preference snapshot.
func (p *Preferences) Snapshot() domain.PreferenceSnapshot {
	theme := p.Theme.Prefs()
	card := p.Card.Prefs()
	return domain.PreferenceSnapshot{
		HeroTheme:      theme.HeroTheme,
		ColorMode:      theme.ColorMode,
		CardTemplateID: card.TemplateID,
		Font:           card.Font,
		FontColor:      card.FontColor,
		FontSize:       card.FontSize,
		RootClasses:    p.Theme.RootClasses(),
	}
}

// Reset restores the defaults and drops the persisted entries.
func (p *Preferences) Reset(ctx context.Context) error {
	p.Theme.mu.Lock()
	p.Theme.prefs = domain.ThemePrefs{HeroTheme: domain.DefaultHeroTheme, ColorMode: domain.DefaultColorMode}
	p.Theme.rootClasses = rootClasses(p.Theme.prefs)
	p.Theme.mu.Unlock()

	p.Card.mu.Lock()
	p.Card.prefs = defaultCard()
	p.Card.mu.Unlock()

	return p.Theme.state.Delete(ctx, p.Theme.key, p.Card.key)
}
