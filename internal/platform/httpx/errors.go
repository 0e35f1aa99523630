package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/workdesk-erp/workdesk-erp/internal/shared"
)

// Error translates an error into the envelope using the shared taxonomy:
// validation 400, business rule conflict 409, not found 404, forbidden 403,
// everything else 500 with a generic message.
func Error(w http.ResponseWriter, err error) {
	status, message := classify(err)
	JSON(w, status, Envelope{Success: false, Message: message})
}

// FieldErrors writes a 400 envelope carrying per-field validation messages.
func FieldErrors(w http.ResponseWriter, fields map[string]string) {
	JSON(w, http.StatusBadRequest, Envelope{
		Success: false,
		Message: "validation failed",
		Data:    map[string]any{"fields": fields},
	})
}

func classify(err error) (int, string) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return http.StatusBadRequest, validationMessage(verrs)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return http.StatusConflict, "a record with the same unique value already exists"
		case "23503":
			return http.StatusBadRequest, "referenced record does not exist"
		}
	}

	switch {
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound, userMessage(err, "resource not found")
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden, userMessage(err, "access denied")
	case errors.Is(err, shared.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest, userMessage(err, "invalid input")
	case errors.Is(err, shared.ErrConflict), errors.Is(err, shared.ErrInvalidState):
		return http.StatusConflict, userMessage(err, "request conflicts with current state")
	}
	return http.StatusInternalServerError, "internal server error"
}

// userMessage surfaces the wrapped error text for taxonomy errors. Wrapping
// services control the wording, so the text is safe to return.
func userMessage(err error, fallback string) string {
	msg := err.Error()
	if msg == "" {
		return fallback
	}
	return msg
}

func validationMessage(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, strings.ToLower(fe.Field())+" failed on "+fe.Tag())
	}
	return "validation failed: " + strings.Join(parts, ", ")
}
