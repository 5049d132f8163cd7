package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/club-membership/internal/middleware"
	"github.com/iliyamo/club-membership/internal/model"
	"github.com/iliyamo/club-membership/internal/service"
)

const requestTimeout = 5 * time.Second

// statusOf maps a service failure kind to its HTTP status.
func statusOf(k service.Kind) int {
	switch k {
	case service.KindUnauthorized:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindConflict:
		return http.StatusConflict
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindInvalidInput, service.KindInvalidPeriod:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError renders err as {"error": reason}.  Storage failures are
// logged with their cause and shown to clients without it.
func respondError(c echo.Context, err error) error {
	kind := service.KindOf(err)
	status := statusOf(kind)
	if status == http.StatusUnauthorized {
		c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	}
	if status == http.StatusInternalServerError {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
	}
	return c.JSON(status, echo.Map{"error": service.ReasonOf(err)})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// reqCtx bounds the service call made by one request.
func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

func currentUser(c echo.Context) *model.User { return middleware.CurrentUser(c) }

// list wraps an admin listing in the {data, meta} envelope.
func list[T any](c echo.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	return c.JSON(http.StatusOK, echo.Map{"data": items, "meta": echo.Map{"count": len(items)}})
}
