package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ellypaws/macrotune/pkg/api/paths"
	"github.com/ellypaws/macrotune/pkg/crashy"
	"github.com/ellypaws/macrotune/pkg/db"
)

func (s *Server) getHandlers() pathHandler {
	return pathHandler{
		paths.Base:    handler{s.status, nil},
		paths.Schema:  handler{s.getSchema, []echo.MiddlewareFunc{s.RequireSchema, SetCacheHeaders}},
		paths.Jobs:    handler{s.getJobs, []echo.MiddlewareFunc{s.RequireJobs}},
		paths.JobByID: handler{s.getJob, []echo.MiddlewareFunc{s.RequireJobs}},
	}
}

type Status struct {
	Status    string `json:"status"`
	Generator bool   `json:"generator"`
	Schema    bool   `json:"schema"`
	Jobs      bool   `json:"jobs"`
	Database  string `json:"database,omitempty"`
}

// status is "degraded" when the job store is configured but cannot be reached.
func (s *Server) status(c echo.Context) error {
	status := Status{
		Status:    "ok",
		Generator: s.generator != nil,
		Schema:    s.validator != nil,
		Jobs:      s.jobs != nil,
	}
	if s.jobs != nil {
		if err := s.jobs.Err(); err != nil {
			c.Logger().Errorf("database is unavailable: %v", err)
			status.Status = "degraded"
			status.Jobs = false
			status.Database = err.Error()
		}
	}
	return c.JSON(http.StatusOK, status)
}

func (s *Server) getSchema(c echo.Context) error {
	return c.JSONBlob(http.StatusOK, s.validator.Raw())
}

func (s *Server) getJobs(c echo.Context) error {
	jobs, err := s.jobs.AllJobs()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, crashy.Wrap(err))
	}
	if jobs == nil {
		jobs = []db.Job{}
	}
	return c.JSON(http.StatusOK, jobs)
}

func (s *Server) getJob(c echo.Context) error {
	id := c.Param("id")
	job, err := s.jobs.GetJob(id)
	if errors.Is(err, db.ErrJobNotFound) {
		return c.JSON(http.StatusNotFound, crashy.ErrorResponse{ErrorString: "job not found", Debug: map[string]string{"id": id}})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, crashy.Wrap(err))
	}
	return c.JSON(http.StatusOK, job)
}
