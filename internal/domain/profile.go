package domain

import "encoding/json"

// ============================================================
// User profile
// ============================================================

// UserProfile is the client-side view of a BurgerHero member.
type UserProfile struct {
	ID           string          `json:"id"`
	DisplayName  string          `json:"displayName"`
	Email        string          `json:"email"`
	CPF          string          `json:"cpf"`
	Role         Role            `json:"role"`
	AvatarURL    string          `json:"avatarUrl"`
	CustomerCode string          `json:"customerCode"`
	HeroTheme    string          `json:"heroTheme"`
	Settings     ProfileSettings `json:"settings"`
}

// ProfileRecord maps the columns of the remote profiles table.
type ProfileRecord struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	CPF       string          `json:"cpf"`
	Role      string          `json:"role"`
	AvatarURL string          `json:"avatar_url"`
	HeroCode  string          `json:"hero_code"`
	HeroTheme string          `json:"hero_theme"`
	Settings  json.RawMessage `json:"settings,omitempty"`
	Birthdate string          `json:"birthdate,omitempty"`
	WhatsApp  string          `json:"whatsapp,omitempty"`
}

// ToProfile converts a remote row into a UserProfile, normalizing the role.
// Malformed settings are ignored.
func (r *ProfileRecord) ToProfile() *UserProfile {
	p := &UserProfile{
		ID:           r.ID,
		DisplayName:  r.Name,
		Email:        r.Email,
		CPF:          r.CPF,
		Role:         ParseRole(r.Role),
		AvatarURL:    r.AvatarURL,
		CustomerCode: r.HeroCode,
		HeroTheme:    r.HeroTheme,
	}
	if len(r.Settings) > 0 {
		_ = json.Unmarshal(r.Settings, &p.Settings)
	}
	return p
}

// ProfileSettings is stored as jsonb in profiles.settings.
type ProfileSettings struct {
	ColorMode string       `json:"colorMode,omitempty"`
	Card      CardSettings `json:"card"`
}

// CardSettings holds the membership card customization.
type CardSettings struct {
	TemplateID string `json:"templateId,omitempty"`
	Font       string `json:"font,omitempty"`
	FontColor  string `json:"fontColor,omitempty"`
	FontSize   int    `json:"fontSize,omitempty"`
}

// ProfilePatch is a partial update of a UserProfile. Nil fields are left
// untouched. Role is deliberately absent: it is never edited locally.
type ProfilePatch struct {
	DisplayName  *string `json:"displayName,omitempty"`
	Email        *string `json:"email,omitempty"`
	CPF          *string `json:"cpf,omitempty"`
	AvatarURL    *string `json:"avatarUrl,omitempty"`
	CustomerCode *string `json:"customerCode,omitempty"`
	HeroTheme    *string `json:"heroTheme,omitempty"`
}

// Empty reports whether the patch carries no field.
func (p ProfilePatch) Empty() bool {
	return p.DisplayName == nil && p.Email == nil && p.CPF == nil &&
		p.AvatarURL == nil && p.CustomerCode == nil && p.HeroTheme == nil
}

// Columns returns the remote column updates for the patch.
func (p ProfilePatch) Columns() map[string]any {
	cols := map[string]any{}
	if p.DisplayName != nil {
		cols["name"] = *p.DisplayName
	}
	if p.Email != nil {
		cols["email"] = *p.Email
	}
	if p.CPF != nil {
		cols["cpf"] = *p.CPF
	}
	if p.AvatarURL != nil {
		cols["avatar_url"] = *p.AvatarURL
	}
	if p.CustomerCode != nil {
		cols["hero_code"] = *p.CustomerCode
	}
	if p.HeroTheme != nil {
		cols["hero_theme"] = *p.HeroTheme
	}
	return cols
}

// BootstrapRequest carries the arguments of ensure_user_bootstrap.
type BootstrapRequest struct {
	Name      string `json:"p_name"`
	Email     string `json:"p_email"`
	CPF       string `json:"p_cpf"`
	Birthdate string `json:"p_birthdate"`
	WhatsApp  string `json:"p_whatsapp"`
}

// BootstrapResult is returned by ensure_user_bootstrap.
type BootstrapResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}
