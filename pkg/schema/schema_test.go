package schema

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ellypaws/macrotune/pkg/macro"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	v, err := macro.Decode([]byte(s))
	require.NoError(t, err)
	return v
}

func TestBuilder(t *testing.T) {
	var b Builder
	b.Add(decode(t, `{"prompt":"a","chartType":"pie","data":[{"name":"x","value":1}],"size":3}`))
	b.Add(decode(t, `{"prompt":"b","chartType":"bar","data":[{"name":"y","value":2.5,"color":"red"}],"size":null}`))

	want := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt":    map[string]any{"type": "string"},
			"chartType": map[string]any{"type": "string"},
			"size":      map[string]any{"type": []string{"integer", "null"}},
			"data": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":  map[string]any{"type": "string"},
						"value": map[string]any{"type": "number"},
						"color": map[string]any{"type": "string"},
					},
					"required": []string{"name", "value"},
				},
			},
		},
		"required": []string{"chartType", "data", "prompt", "size"},
	}
	if diff := cmp.Diff(want, b.Schema()); diff != "" {
		t.Errorf("Schema() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuilderMixedKinds(t *testing.T) {
	var b Builder
	b.Add(decode(t, `{"v":[1]}`))
	b.Add(decode(t, `{"v":{"k":true}}`))
	b.Add(decode(t, `{"v":"s"}`))
	b.Add(decode(t, `{"w":[]}`))

	want := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"v": map[string]any{"anyOf": []any{
				map[string]any{"type": "string"},
				map[string]any{
					"type":       "object",
					"properties": map[string]any{"k": map[string]any{"type": "boolean"}},
					"required":   []string{"k"},
				},
				map[string]any{"type": "array", "items": map[string]any{"type": "integer"}},
			}},
			"w": map[string]any{"type": "array"},
		},
	}
	if diff := cmp.Diff(want, b.Schema()); diff != "" {
		t.Errorf("Schema() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuilderEmpty(t *testing.T) {
	var b Builder
	assert.Equal(t, map[string]any{}, b.Schema())

	doc := b.Document()
	assert.Equal(t, Title, doc["title"])
	assert.Equal(t, Description, doc["description"])
	assert.Equal(t, Draft, doc["$schema"])
}

func TestScalarType(t *testing.T) {
	assert.Equal(t, "integer", scalarType(json.Number("3")))
	assert.Equal(t, "integer", scalarType(json.Number("123456789012345678901234")))
	assert.Equal(t, "number", scalarType(json.Number("3.0")))
	assert.Equal(t, "number", scalarType(json.Number("1e3")))
	assert.Equal(t, "integer", scalarType(float64(4)))
	assert.Equal(t, "number", scalarType(4.5))
	assert.Equal(t, "integer", scalarType(7))
	assert.Equal(t, "null", scalarType(nil))
}

var samples = []string{
	`{"prompt":"show planets","chartType":"pie","data":[{"name":"Mercury","value":0.33}]}`,
	`{"prompt":"bar of heights","chartType":"bar","data":[{"name":"Everest","value":8849}],"title":"Mountains"}`,
	`{"prompt":"table","chartType":"table","data":[],"columns":["a","b"]}`,
	`{"prompt":"mixed","chartType":null,"data":[{"name":"x","value":"n/a","extra":{"deep":[1,2]}}]}`,
}

func TestWideningOnly(t *testing.T) {
	var b Builder
	var previous []*Validator
	for i, sample := range samples {
		b.Add(decode(t, sample))
		v, err := Compile(b.Document())
		require.NoError(t, err)

		for j := 0; j <= i; j++ {
			ok, problem := v.ValidateBytes([]byte(samples[j]))
			assert.Truef(t, ok, "sample %d rejected after adding %d: %s", j, i, problem)
		}
		for k, old := range previous {
			for j := 0; j < i; j++ {
				okOld, _ := old.ValidateBytes([]byte(samples[j]))
				okNew, _ := v.ValidateBytes([]byte(samples[j]))
				assert.Truef(t, !okOld || okNew, "schema %d accepted sample %d but schema %d does not", k, j, i)
			}
		}
		previous = append(previous, v)
	}
}

func TestValidator(t *testing.T) {
	var b Builder
	for _, s := range samples[:2] {
		b.Add(decode(t, s))
	}
	v, err := Compile(b.Document())
	require.NoError(t, err)

	ok, problem := v.ValidateBytes([]byte(`{"prompt":"x","chartType":"line","data":[]}`))
	assert.True(t, ok, problem)

	ok, problem = v.ValidateBytes([]byte(`{"prompt":1,"chartType":"line","data":[]}`))
	assert.False(t, ok)
	assert.NotEmpty(t, problem)

	ok, _ = v.ValidateBytes([]byte(`{"chartType":"line","data":[]}`))
	assert.False(t, ok, "prompt is required")

	for _, malformed := range []string{`{"prompt":`, `{"prompt":"x","chartType":"line","data":[]}}`, `{"prompt":"x","chartType":"line","data":[]}]`} {
		ok, problem = v.ValidateBytes([]byte(malformed))
		assert.False(t, ok, malformed)
		assert.True(t, strings.HasPrefix(problem, "Invalid JSON format: "), problem)
	}
}

func TestInferDir(t *testing.T) {
	dir := t.TempDir()
	for i, s := range samples {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "macro_"+string(rune('a'+i))+".json"), []byte(s), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), []byte(`{"type":"string"}`), 0644))

	doc, report, err := InferDir(context.Background(), dir, []string{DefaultFile}, nil)
	require.NoError(t, err)
	assert.Equal(t, Report{Found: 6, Processed: 4, Skipped: 1}, report)
	assert.Equal(t, Title, doc["title"])

	out := filepath.Join(t.TempDir(), "nested", DefaultFile)
	require.NoError(t, WriteFile(out, doc))

	v, err := Load(out)
	require.NoError(t, err)
	for _, s := range samples {
		ok, problem := v.ValidateBytes([]byte(s))
		assert.True(t, ok, problem)
	}

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "{\n  \""), "two-space indentation")
	assert.Equal(t, b, v.Raw())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = CompileBytes([]byte(`{"type": 12}`))
	assert.Error(t, err)
}
