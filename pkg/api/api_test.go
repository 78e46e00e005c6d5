package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ellypaws/macrotune/pkg/db"
	"github.com/ellypaws/macrotune/pkg/generate"
	"github.com/ellypaws/macrotune/pkg/llm"
	"github.com/ellypaws/macrotune/pkg/schema"
)

type fakeGenerator struct {
	prompts []string
	err     error
}

func (f *fakeGenerator) Macro(_ context.Context, prompt string) (*generate.Result, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	return &generate.Result{
		Prompt: prompt,
		Macro:  map[string]any{"prompt": prompt, "chartType": "pie"},
	}, nil
}

func testValidator(t *testing.T) *schema.Validator {
	t.Helper()
	var b schema.Builder
	b.Add(map[string]any{"prompt": "show sales", "chartType": "bar"})
	validator, err := schema.Compile(b.Document())
	require.NoError(t, err)
	return validator
}

func testJobs(t *testing.T) *db.Sqlite {
	t.Helper()
	database, err := db.New(context.Background(), db.Memory)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func serve(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestStatus(t *testing.T) {
	e := New(RunConfig{Validator: testValidator(t)})

	rec := serve(e, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Status{Status: "ok", Schema: true}, decode[Status](t, rec))

	rec = serve(e, http.MethodHead, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, timeToLiveString, rec.Header().Get(echo.HeaderCacheControl))
}

func TestStatusDatabase(t *testing.T) {
	jobs := testJobs(t)
	e := New(RunConfig{Jobs: jobs})

	rec := serve(e, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, Status{Status: "ok", Jobs: true}, decode[Status](t, rec))

	require.NoError(t, jobs.Close())
	rec = serve(e, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[Status](t, rec)
	assert.Equal(t, "degraded", status.Status)
	assert.False(t, status.Jobs)
	assert.NotEmpty(t, status.Database)
}

func TestGetSchema(t *testing.T) {
	validator := testValidator(t)
	e := New(RunConfig{Validator: validator})

	rec := serve(e, http.MethodGet, "/schema", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, string(validator.Raw()), rec.Body.String())
	assert.Equal(t, timeToLiveString, rec.Header().Get(echo.HeaderCacheControl))

	rec = serve(New(RunConfig{}), http.MethodGet, "/schema", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "no schema loaded")
}

func TestValidateMacro(t *testing.T) {
	e := New(RunConfig{Validator: testValidator(t)})

	tests := []struct {
		name    string
		body    string
		valid   bool
		problem string
	}{
		{"conforming", `{"prompt":"show costs","chartType":"line"}`, true, ""},
		{"wrong type", `{"prompt":7,"chartType":"line"}`, false, "prompt"},
		{"missing field", `{"prompt":"show costs"}`, false, "chartType"},
		{"not json", `{"prompt":`, false, "Invalid JSON format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(e, http.MethodPost, "/macro/validate", tt.body)
			require.Equal(t, http.StatusOK, rec.Code)

			response := decode[ValidationResponse](t, rec)
			assert.Equal(t, tt.valid, response.Valid)
			if tt.valid {
				assert.Empty(t, response.Error)
			} else {
				assert.Contains(t, response.Error, tt.problem)
			}
		})
	}
}

func TestGenerateMacro(t *testing.T) {
	generator := &fakeGenerator{}
	e := New(RunConfig{Generator: generator})

	rec := serve(e, http.MethodPost, "/macro/generate", `{"prompt":"  show planets in a pie chart "}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decode[map[string]any](t, rec)
	assert.Equal(t, "show planets in a pie chart", result["prompt"])
	assert.Equal(t, "pie", result["macro"].(map[string]any)["chartType"])
	assert.Equal(t, []string{"show planets in a pie chart"}, generator.prompts)

	rec = serve(e, http.MethodPost, "/macro/generate", `{"prompt":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "prompt is required")

	rec = serve(e, http.MethodPost, "/macro/generate", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateMacroErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"invalid reply", fmt.Errorf("%w: Sure!", generate.ErrInvalidJSON), http.StatusBadGateway},
		{"remote error", &llm.APIError{Status: http.StatusUnauthorized, Message: "bad key"}, http.StatusBadGateway},
		{"rate limited", &llm.APIError{Status: http.StatusTooManyRequests, Message: "slow down"}, http.StatusTooManyRequests},
		{"missing model", generate.ErrMissingModel, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(RunConfig{Generator: &fakeGenerator{err: tt.err}})
			rec := serve(e, http.MethodPost, "/macro/generate", `{"prompt":"x"}`)
			assert.Equal(t, tt.code, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}

	rec := serve(New(RunConfig{}), http.MethodPost, "/macro/generate", `{"prompt":"x"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestVariations(t *testing.T) {
	e := New(RunConfig{})

	rec := serve(e, http.MethodPost, "/variations", `{"prompt":"show planets of solar system in a pie chart"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, VariationsResponse{
		Prompt: "show planets of solar system in a pie chart",
		Variations: [3]string{
			"Display planets of solar system in a pie visualization",
			"Show planets of solar system in a circular chart",
			"Build planets of solar system in a pie graph",
		},
	}, decode[VariationsResponse](t, rec))
}

func TestJobs(t *testing.T) {
	jobs := testJobs(t)
	e := New(RunConfig{Jobs: jobs})

	rec := serve(e, http.MethodGet, "/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, jobs.UpsertJob(db.Job{JobID: "ftjob-1", Status: "running", CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, jobs.UpsertJob(db.Job{JobID: "ftjob-2", Status: "succeeded", FineTunedModel: "ft:x", CreatedAt: now.Add(time.Hour), UpdatedAt: now.Add(time.Hour)}))

	rec = serve(e, http.MethodGet, "/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[[]db.Job](t, rec)
	require.Len(t, all, 2)
	assert.Equal(t, "ftjob-2", all[0].JobID)

	rec = serve(e, http.MethodGet, "/jobs/ftjob-2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	job := decode[db.Job](t, rec)
	assert.Equal(t, "ft:x", job.FineTunedModel)
	assert.Equal(t, "succeeded", job.Status)

	rec = serve(e, http.MethodGet, "/jobs/ftjob-404", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "job not found")

	rec = serve(New(RunConfig{}), http.MethodGet, "/jobs", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNotFound(t *testing.T) {
	rec := serve(New(RunConfig{}), http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
}

func TestRateLimiter(t *testing.T) {
	e := New(RunConfig{RequestsPerSecond: 1})

	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/", "").Code)
	rec := serve(e, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
}

func TestRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	assert.NoError(t, Run(ctx, RunConfig{Port: 0}))
}
