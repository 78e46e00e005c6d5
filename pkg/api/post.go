package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ellypaws/macrotune/pkg/api/paths"
	"github.com/ellypaws/macrotune/pkg/crashy"
	"github.com/ellypaws/macrotune/pkg/generate"
	"github.com/ellypaws/macrotune/pkg/llm"
	"github.com/ellypaws/macrotune/pkg/variation"
)

func (s *Server) postHandlers() pathHandler {
	return pathHandler{
		paths.MacroValidate: handler{s.validateMacro, []echo.MiddlewareFunc{s.RequireSchema}},
		paths.MacroGenerate: handler{s.generateMacro, []echo.MiddlewareFunc{s.RequireGenerator}},
		paths.Variations:    handler{variations, nil},
	}
}

type PromptRequest struct {
	Prompt string `json:"prompt"`
}

func bindPrompt(c echo.Context) (string, error) {
	var request PromptRequest
	if err := c.Bind(&request); err != nil {
		return "", err
	}
	prompt := strings.TrimSpace(request.Prompt)
	if prompt == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "prompt is required")
	}
	return prompt, nil
}

type ValidationResponse struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// validateMacro checks the request body against the loaded schema. A document
// that does not conform is still a 200 with valid set to false.
func (s *Server) validateMacro(c echo.Context) error {
	b, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, crashy.Wrap(err))
	}
	valid, problem := s.validator.ValidateBytes(b)
	return c.JSON(http.StatusOK, ValidationResponse{Valid: valid, Error: problem})
}

func (s *Server) generateMacro(c echo.Context) error {
	prompt, err := bindPrompt(c)
	if err != nil {
		return err
	}

	result, err := s.generator.Macro(c.Request().Context(), prompt)
	if err != nil {
		c.Logger().Errorf("Error getting macro: %v", err)
		return c.JSON(generateStatus(err), crashy.Wrap(err))
	}
	return c.JSON(http.StatusOK, result)
}

func generateStatus(err error) int {
	var apiErr *llm.APIError
	switch {
	case errors.Is(err, generate.ErrInvalidJSON):
		return http.StatusBadGateway
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests:
		return http.StatusTooManyRequests
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type VariationsResponse struct {
	Prompt     string    `json:"prompt"`
	Variations [3]string `json:"variations"`
}

func variations(c echo.Context) error {
	prompt, err := bindPrompt(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, VariationsResponse{Prompt: prompt, Variations: variation.Generate(prompt)})
}
