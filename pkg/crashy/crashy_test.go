package crashy

import (
	"encoding/json"
	"testing"

	"github.com/go-errors/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stack = "/home/dev/src/github.com/ellypaws/macrotune/pkg/db/jobs.go:42 (0x4a1b2c)\n" +
	"\tSqlite.GetJob: return job, err\n" +
	"/usr/local/go/src/runtime/proc.go:250 (0x43c1d7)\n" +
	"\tmain: fn()\n"

func TestWrap(t *testing.T) {
	err := errors.Errorf("oh no")
	wrapped := Wrap(err)
	assert.Equal(t, "oh no", wrapped.ErrorString)
	assert.IsType(t, "", wrapped.Debug)
	assert.Contains(t, wrapped.Debug.(string), "TestWrap")

	plain := Wrap(json.Unmarshal([]byte("{"), new(any)))
	assert.Equal(t, "unexpected end of JSON input", plain.ErrorString)

	assert.Equal(t, "unknown error", Wrap(nil).Error())
}

func TestTrimPath(t *testing.T) {
	assert.Equal(t,
		"macrotune/pkg/db/jobs.go:42 (0x4a1b2c)\nSqlite.GetJob: return job, err",
		TrimPath(stack),
	)
}

func TestMapPath(t *testing.T) {
	assert.Equal(t,
		map[string]any{"macrotune/pkg/db/jobs.go:42": "Sqlite.GetJob: return job, err"},
		MapPath(stack),
	)
}

func TestMarshalJSON(t *testing.T) {
	b, err := json.Marshal(ErrorResponse{ErrorString: "job not found", Debug: map[string]string{"id": "ftjob-1"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"job not found","debug":{"id":"ftjob-1"}}`, string(b))

	b, err = json.Marshal(ErrorResponse{ErrorString: "empty"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"empty"}`, string(b))

	b, err = json.Marshal(Wrap(errors.New("with stack")))
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "with stack", decoded["error"])
}
