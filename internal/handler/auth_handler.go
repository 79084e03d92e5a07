package handler

import (
	"net/http"

	"github.com/burgerhero/burgerhero-bff/internal/domain"
	"github.com/burgerhero/burgerhero-bff/internal/service"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ============================================================
// 1. Autenticação
// ============================================================

func signInHandler(account *service.AccountService, validate *validator.Validate, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/sign-in")
		defer span.End()

		var req domain.SignInRequest
		if err := decodeAndValidate(r, validate, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		st, err := account.SignIn(ctx, DeviceFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func signUpHandler(account *service.AccountService, validate *validator.Validate, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/sign-up")
		defer span.End()

		var req domain.SignUpRequest
		if err := decodeAndValidate(r, validate, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		st, err := account.SignUp(ctx, DeviceFromContext(ctx), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		status := http.StatusCreated
		if !st.IsAuthed {
			status = http.StatusAccepted
		}
		writeJSON(w, status, st)
	}
}

func signOutHandler(account *service.AccountService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/sign-out")
		defer span.End()

		st, err := account.SignOut(ctx, DeviceFromContext(ctx))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

// ============================================================
// 2. Sessão
// ============================================================

func sessionHandler(account *service.AccountService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, account.State(DeviceFromContext(r.Context())))
	}
}

func sessionResetHandler(account *service.AccountService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/session/reset")
		defer span.End()

		if err := account.Reset(ctx, DeviceFromContext(ctx).ID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "Dados locais apagados"})
	}
}
