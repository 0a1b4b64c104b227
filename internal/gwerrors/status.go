package gwerrors

import (
	"errors"
	"net/http"
)

// HTTPStatus maps an error to the status an HTTP surface should answer
// with. Unknown errors map to 500.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrUnknownEndpoint),
		errors.Is(err, ErrPathMismatch):
		return http.StatusNotFound
	case errors.Is(err, ErrMissingParameter),
		errors.Is(err, ErrInvalidParameter),
		errors.Is(err, ErrUnknownType),
		errors.Is(err, ErrUnsupportedAuthType):
		return http.StatusBadRequest
	case errors.Is(err, ErrParse),
		errors.Is(err, ErrCompile),
		errors.Is(err, ErrReference),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrMissingCredential):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
