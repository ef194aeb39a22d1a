package service

import (
	"errors"
	"maps"

	apperrors "small-library/internal/errors"
	"small-library/internal/repository"
)

// rejected maps a failed write to the error returned to API callers.
// Validation and uniqueness failures keep their message and gain the
// offending argument; anything else is internal.
func rejected(err error, arg string) error {
	var apiErr *apperrors.Error
	switch {
	case errors.As(err, &apiErr) && apiErr.Code == apperrors.CodeBadUserInput:
		details := maps.Clone(apiErr.Details)
		if details == nil {
			details = map[string]any{}
		}
		details["invalidArgs"] = arg
		details["error"] = apiErr.Message
		return apiErr.WithDetails(details)
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.BadUserInput(err.Error()).
			WithDetails(map[string]any{"invalidArgs": arg, "error": err.Error()}).
			WithCause(err)
	default:
		return apperrors.Internal(err)
	}
}
