package http

import (
	"errors"
	"net/http"

	"github.com/vogiaan1904/trafficroom/internal/service"
	pkgErrors "github.com/vogiaan1904/trafficroom/pkg/errors"
)

var (
	errUnauthorized       = pkgErrors.NewHTTPError(110001, "Missing or invalid bearer token").WithStatus(http.StatusUnauthorized)
	errInvalidClaims      = pkgErrors.NewHTTPError(110002, "Token claims are invalid").WithStatus(http.StatusUnauthorized)
	errInvalidLimit       = pkgErrors.NewHTTPError(110003, "limit must be between 0 and 100").WithStatus(http.StatusBadRequest)
	errTokenUnavailable   = pkgErrors.NewHTTPError(110004, "Could not start a session, try again").WithStatus(http.StatusServiceUnavailable)
	errCoordinatorClosed  = pkgErrors.NewHTTPError(110005, "Service is shutting down").WithStatus(http.StatusServiceUnavailable)
	errHistoryUnavailable = pkgErrors.NewHTTPError(110006, "Ranking is unavailable right now").WithStatus(http.StatusServiceUnavailable)
)

func (h *HTTPHandler) mapError(err error) error {
	switch {
	case errors.Is(err, service.ErrTokenUnavailable):
		return errTokenUnavailable
	case errors.Is(err, service.ErrCoordinatorClosed):
		return errCoordinatorClosed
	case errors.Is(err, service.ErrHistoryUnavailable):
		return errHistoryUnavailable
	}

	return err
}
