package handler

import (
	"net/http"

	"github.com/burgerhero/burgerhero-bff/internal/domain"
	"github.com/burgerhero/burgerhero-bff/internal/service"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ============================================================
// 3. Perfil
// ============================================================

// updateMeRequest is the body of PATCH /v1/me.
type updateMeRequest struct {
	DisplayName  *string `json:"displayName" validate:"omitempty,min=2,max=120"`
	Email        *string `json:"email" validate:"omitempty,email"`
	CPF          *string `json:"cpf" validate:"omitempty,cpf"`
	AvatarURL    *string `json:"avatarUrl" validate:"omitempty,url"`
	CustomerCode *string `json:"customerCode" validate:"omitempty,max=32"`
	HeroTheme    *string `json:"heroTheme" validate:"omitempty,min=1,max=40"`
}

func (r updateMeRequest) patch() domain.ProfilePatch {
	return domain.ProfilePatch{
		DisplayName:  r.DisplayName,
		Email:        r.Email,
		CPF:          r.CPF,
		AvatarURL:    r.AvatarURL,
		CustomerCode: r.CustomerCode,
		HeroTheme:    r.HeroTheme,
	}
}

func updateMeHandler(account *service.AccountService, validate *validator.Validate, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/me")
		defer span.End()

		var req updateMeRequest
		if err := decodeAndValidate(r, validate, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		user, err := account.UpdateProfile(ctx, DeviceFromContext(ctx), req.patch())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

func refreshMeHandler(account *service.AccountService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/me/refresh")
		defer span.End()

		user, err := account.RefreshFromDB(ctx, DeviceFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

// ============================================================
// 4. Preferências
// ============================================================

func getPreferencesHandler(account *service.AccountService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, account.Preferences(DeviceFromContext(r.Context())))
	}
}

func putPreferencesHandler(account *service.AccountService, validate *validator.Validate, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/preferences")
		defer span.End()

		var req domain.PreferencesUpdate
		if err := decodeAndValidate(r, validate, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		snap, err := account.UpdatePreferences(ctx, DeviceFromContext(ctx), req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func savePreferencesHandler(account *service.AccountService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/preferences/save")
		defer span.End()

		snap, err := account.SavePreferences(ctx, DeviceFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}
