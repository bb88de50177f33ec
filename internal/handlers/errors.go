package handlers

import (
	"errors"
	"net/http"

	"github.com/anonto42/edu-connect/backend/internal/apperrors"
	"github.com/labstack/echo/v4"
)

var statusByKind = map[apperrors.Kind]int{
	apperrors.KindNotFound:         http.StatusNotFound,
	apperrors.KindSelfRequest:      http.StatusBadRequest,
	apperrors.KindAlreadyRequested: http.StatusConflict,
	apperrors.KindAlreadyConnected: http.StatusConflict,
	apperrors.KindNotParticipant:   http.StatusForbidden,
	apperrors.KindForbidden:        http.StatusForbidden,
	apperrors.KindInvalidArgument:  http.StatusBadRequest,
	apperrors.KindTimeout:          http.StatusGatewayTimeout,
	apperrors.KindTransportFailure: http.StatusServiceUnavailable,
}

// httpError converts a service error into an echo.HTTPError whose body
// carries the error kind so clients can tell failures apart.
func httpError(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}

	kind := apperrors.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, echo.Map{"kind": apperrors.KindUnknown, "message": "internal error"}).SetInternal(err)
	}

	msg := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	return echo.NewHTTPError(status, echo.Map{"kind": kind, "message": msg}).SetInternal(err)
}
