package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/burgerhero/burgerhero-bff/internal/domain"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var authFailure *domain.ErrAuthFailure
	var unrecoverable *domain.ErrProfileUnrecoverable
	var external *domain.ErrExternalService
	var notFound *domain.ErrNotFound
	var circuitOpen *domain.ErrCircuitOpen
	var validation *domain.ErrValidation
	var unauthorized *domain.ErrUnauthorized
	var conflict *domain.ErrConflict

	switch {
	case errors.As(err, &authFailure):
		logger.Debug("auth failure", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, authFailure.Error())
	case errors.As(err, &unrecoverable):
		logger.Warn("profile unrecoverable", zap.String("user_id", unrecoverable.UserID), zap.String("reason", unrecoverable.Reason))
		writeError(w, http.StatusUnauthorized, unrecoverable.UserMessage())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "Serviço temporariamente indisponível")
	case errors.As(err, &external):
		logger.Error("backend error", zap.String("service", external.Service), zap.Error(err))
		writeError(w, http.StatusBadGateway, "Não foi possível falar com o servidor. Tente novamente.")
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, validation.Message)
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &conflict):
		logger.Debug("conflict", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// ============================================================
// Request validation
// ============================================================

// newValidator returns a validator reporting JSON field names and knowing
// the cpf tag.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("cpf", func(fl validator.FieldLevel) bool {
		return validCPF(fl.Field().String())
	})
	return v
}

// decodeAndValidate reads a JSON body into dst and validates it.
func decodeAndValidate(r *http.Request, v *validator.Validate, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &domain.ErrValidation{Field: "body", Message: "corpo da requisição inválido"}
	}
	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &domain.ErrValidation{Field: fe.Field(), Message: validationMessage(fe)}
		}
		return &domain.ErrValidation{Field: "body", Message: err.Error()}
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " é obrigatório"
	case "email":
		return "e-mail inválido"
	case "cpf":
		return "CPF inválido"
	case "min":
		return fe.Field() + " muito curto"
	case "max":
		return fe.Field() + " muito longo"
	case "oneof":
		return fe.Field() + " deve ser um de: " + fe.Param()
	case "hexcolor":
		return fe.Field() + " deve ser uma cor hexadecimal"
	case "datetime":
		return fe.Field() + " deve estar no formato AAAA-MM-DD"
	default:
		return fe.Field() + " inválido"
	}
}

// validCPF checks the two CPF verification digits. Masks are ignored.
func validCPF(raw string) bool {
	digits := make([]int, 0, 11)
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits = append(digits, int(r-'0'))
		}
	}
	if len(digits) != 11 {
		return false
	}
	allSame := true
	for _, d := range digits[1:] {
		if d != digits[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return false
	}

	for pos := 9; pos <= 10; pos++ {
		sum := 0
		for i := 0; i < pos; i++ {
			sum += digits[i] * (pos + 1 - i)
		}
		check := (sum * 10) % 11
		if check == 10 {
			check = 0
		}
		if check != digits[pos] {
			return false
		}
	}
	return true
}
