// Package api serves macro generation, validation and the fine-tuning job
// ledger over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	gommon "github.com/labstack/gommon/log"

	"github.com/ellypaws/macrotune/pkg/db"
	"github.com/ellypaws/macrotune/pkg/generate"
	"github.com/ellypaws/macrotune/pkg/logger"
	"github.com/ellypaws/macrotune/pkg/schema"
)

// Jobs is the read side of the job ledger. *db.Sqlite implements it.
type Jobs interface {
	GetJob(jobID string) (db.Job, error)
	AllJobs() ([]db.Job, error)
	// Err reports whether the store can be reached.
	Err() error
}

// Generator is satisfied by *generate.Generator.
type Generator interface {
	Macro(ctx context.Context, prompt string) (*generate.Result, error)
}

type RunConfig struct {
	Jobs      Jobs
	Generator Generator
	Validator *schema.Validator

	Port     uint
	LogLevel gommon.Lvl
	// RequestsPerSecond limits each client IP. Zero disables the limiter.
	RequestsPerSecond float64

	Middlewares []echo.MiddlewareFunc
	Extra       []func(e *echo.Echo)
}

// Server holds the dependencies shared by the handlers. Any of them may be nil;
// the routes that need a missing one answer 503.
type Server struct {
	jobs      Jobs
	generator Generator
	validator *schema.Validator
}

// New builds the echo instance with every route registered.
func New(config RunConfig) *echo.Echo {
	s := &Server{
		jobs:      config.Jobs,
		generator: config.Generator,
		validator: config.Validator,
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = errorHandler

	e.Logger.SetLevel(config.LogLevel)
	e.Logger.SetHeader(logger.Header)
	e.Logger.SetPrefix("api")

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("2M"))
	if config.RequestsPerSecond > 0 {
		e.Use(rateLimiter(config.RequestsPerSecond))
	}
	e.Use(config.Middlewares...)

	registerAs(e.GET, s.getHandlers())
	registerAs(e.POST, s.postHandlers())
	registerAs(e.HEAD, headHandlers)

	for _, f := range config.Extra {
		f(e)
	}
	return e
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, config RunConfig) error {
	e := New(config)

	errs := make(chan error, 1)
	go func() {
		errs <- e.Start(fmt.Sprintf(":%d", config.Port))
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	e.Logger.Infof("shutting down")
	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdown); err != nil {
		return err
	}
	if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type route = func(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route

type handler struct {
	handler    func(c echo.Context) error
	middleware []echo.MiddlewareFunc
}

type pathHandler = map[string]handler

func registerAs(route route, pathHandler pathHandler) {
	for path, handler := range pathHandler {
		route(path, handler.handler, handler.middleware...)
	}
}
