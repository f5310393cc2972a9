package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/alokdon2/CollabCanvas-sub000/internal/auth"
	"github.com/alokdon2/CollabCanvas-sub000/internal/export"
	"github.com/alokdon2/CollabCanvas-sub000/internal/history"
	"github.com/alokdon2/CollabCanvas-sub000/internal/localsync"
	"github.com/alokdon2/CollabCanvas-sub000/internal/project"
	"github.com/alokdon2/CollabCanvas-sub000/internal/session"
	"github.com/alokdon2/CollabCanvas-sub000/internal/store"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

var (
	errViewNotFound = domainError(http.StatusNotFound, "VIEW_NOT_FOUND", "View not found", nil)
	errSignInNeeded = domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Sign in required", nil)
	errForbidden    = domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
)

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Project not found", nil
	case errors.Is(err, project.ErrNodeNotFound):
		return http.StatusNotFound, "NODE_NOT_FOUND", "Node not found", nil
	case errors.Is(err, project.ErrEmptyName):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Name is required", nil
	case errors.Is(err, project.ErrNotFolder), errors.Is(err, project.ErrSelfMove), errors.Is(err, project.ErrCycle):
		return http.StatusUnprocessableEntity, "INVALID_MOVE", err.Error(), nil
	case errors.Is(err, session.ErrReadOnly):
		return http.StatusForbidden, "READ_ONLY", "Project is read-only", nil
	case errors.Is(err, session.ErrClosed):
		return http.StatusGone, "VIEW_CLOSED", "View is closed", nil
	case errors.Is(err, session.ErrNotReady):
		return http.StatusConflict, "NOT_READY", "Project is not loaded", nil
	case errors.Is(err, session.ErrSaveFailed):
		return http.StatusBadGateway, "SAVE_FAILED", err.Error(), nil
	case errors.Is(err, session.ErrNoActiveView):
		return http.StatusConflict, "NO_ACTIVE_VIEW", "No project is open", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	case errors.Is(err, localsync.ErrUnknownDecision):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, history.ErrNoHistory):
		return http.StatusNotFound, "NO_HISTORY", "Project has no history", nil
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, export.ErrVersionUnavailable), errors.Is(err, export.ErrPublishDisabled),
		errors.Is(err, export.ErrPDFDependencyMissing), errors.Is(err, export.ErrDOCXDependencyMissing):
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", err.Error(), nil
	}
	return http.StatusInternalServerError, "INTERNAL", "Internal server error", nil
}
