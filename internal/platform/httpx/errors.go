package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrTooLarge     = errors.New("payload too large")
	ErrUnsupported  = errors.New("unsupported media type")
	ErrBadGateway   = errors.New("upstream failure")
)

// StatusFor returns the HTTP status a domain error maps to.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrUnsupported):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrBadGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		Problem(w, status, "Internal Error", "")
		return
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		WriteProblem(w, ProblemDetail{
			Title:  titleFor(status),
			Status: status,
			Detail: verr.Error(),
			Errors: verr.Fields,
		})
		return
	}
	Problem(w, status, titleFor(status), err.Error())
}

func titleFor(status int) string {
	switch status {
	case http.StatusConflict:
		return "Conflict"
	case http.StatusBadRequest:
		return "Validation Failed"
	case http.StatusBadGateway:
		return "Upstream Failure"
	default:
		return http.StatusText(status)
	}
}
