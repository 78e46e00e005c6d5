package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/ellypaws/macrotune/pkg/crashy"
)

const timeToLive = 5 * time.Minute

var timeToLiveString = fmt.Sprintf("max-age=%v", timeToLive.Seconds())

func SetCacheHeaders(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderCacheControl, timeToLiveString)
		return next(c)
	}
}

var withCache = []echo.MiddlewareFunc{SetCacheHeaders}

func (s *Server) RequireGenerator(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.generator == nil {
			return c.JSON(http.StatusServiceUnavailable, crashy.ErrorResponse{ErrorString: "no fine-tuned model configured"})
		}
		return next(c)
	}
}

func (s *Server) RequireSchema(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.validator == nil {
			return c.JSON(http.StatusServiceUnavailable, crashy.ErrorResponse{ErrorString: "no schema loaded"})
		}
		return next(c)
	}
}

func (s *Server) RequireJobs(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.jobs == nil {
			return c.JSON(http.StatusServiceUnavailable, crashy.ErrorResponse{ErrorString: "no job database"})
		}
		return next(c)
	}
}

// rateLimiter allows perSecond requests per client IP with a burst of the same size.
func rateLimiter(perSecond float64) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(perSecond),
		Burst:     max(1, int(perSecond)),
		ExpiresIn: 3 * time.Minute,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, crashy.ErrorResponse{ErrorString: "rate limit exceeded", Debug: map[string]string{"identifier": identifier}})
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, crashy.Wrap(err))
		},
	})
}

// errorHandler renders echo errors in the same shape as handler errors.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	response := crashy.ErrorResponse{ErrorString: err.Error()}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		response.ErrorString = fmt.Sprint(he.Message)
		if he.Internal != nil {
			response.Debug = he.Internal
		}
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, response)
	}
	if err != nil {
		c.Logger().Error(err)
	}
}
