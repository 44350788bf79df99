// Package server exposes a workspace over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/nibzard/tasklane/internal/assistant"
	"github.com/nibzard/tasklane/internal/todo"
	"github.com/nibzard/tasklane/internal/workspace"
)

// ShutdownTimeout bounds how long Serve waits for in-flight requests.
const ShutdownTimeout = 5 * time.Second

// New returns an echo instance with the API registered.
func New(ws *workspace.Workspace, logger *log.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(e, logger)
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))
	e.Use(requestLogger(logger))
	Register(e, ws)
	return e
}

// Serve runs e on addr until ctx is done, then shuts it down.
func Serve(ctx context.Context, e *echo.Echo, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(addr)
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func requestLogger(logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if logger != nil {
				status := c.Response().Status
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				}
				logger.Debug("request",
					"method", c.Request().Method,
					"path", c.Request().URL.Path,
					"status", status,
					"latency", time.Since(start))
			}
			return err
		}
	}
}

// errorHandler maps domain errors to status codes before handing off to
// echo's default JSON error body.
func errorHandler(e *echo.Echo, logger *log.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var he *echo.HTTPError
		if !errors.As(err, &he) {
			he = toHTTPError(err)
			if he.Code == http.StatusInternalServerError && logger != nil {
				logger.Error("request failed", "path", c.Request().URL.Path, "err", err)
			}
		}
		e.DefaultHTTPErrorHandler(he, c)
	}
}

func toHTTPError(err error) *echo.HTTPError {
	var (
		ve  *todo.ValidationError
		ife *todo.ImportFormatError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &ife), errors.Is(err, assistant.ErrEmptyRequest):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, todo.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, workspace.ErrDeclined):
		return echo.NewHTTPError(http.StatusConflict, "confirmation required: repeat with confirm=true")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
