package crashy

import (
	"encoding/json"
	"strings"

	"github.com/go-errors/errors"
)

type ErrorResponse struct {
	ErrorString string `json:"error"`
	Debug       any    `json:"debug,omitempty"`
}

// Wrap keeps the stack of a go-errors error as the debug payload.
func Wrap(err error) ErrorResponse {
	if err == nil {
		return ErrorResponse{ErrorString: "unknown error"}
	}
	var debug *errors.Error
	if errors.As(err, &debug) {
		return ErrorResponse{ErrorString: err.Error(), Debug: debug.ErrorStack()}
	}
	return ErrorResponse{ErrorString: err.Error(), Debug: err}
}

func (e ErrorResponse) Error() string {
	return e.ErrorString
}

func (e ErrorResponse) String() string {
	return e.ErrorString
}

func (e ErrorResponse) DebugString() string {
	if e.Debug == nil {
		return ""
	}
	return TrimPath(errors.New(e.Debug).ErrorStack())
}

func (e ErrorResponse) Map() map[string]any {
	if e.Debug == nil {
		return nil
	}
	return MapPath(errors.New(e.Debug).ErrorStack())
}

func (e ErrorResponse) MarshalJSON() ([]byte, error) {
	switch e.Debug.(type) {
	case nil, error, string:
		return json.Marshal(struct {
			Error string         `json:"error"`
			Debug map[string]any `json:"debug,omitempty"`
		}{
			Error: e.ErrorString,
			Debug: e.Map(),
		})
	default:
		return json.Marshal(struct {
			Error string `json:"error"`
			Debug any    `json:"debug"`
		}{
			Error: e.ErrorString,
			Debug: e.Debug,
		})
	}
}

const projectPrefix = "macrotune/"

// TrimPath cleans up the stack trace by only showing the callers
func TrimPath(s string) string {
	lines := strings.Split(s, "\n")

	var keepNext bool
	var out []string
	for i, line := range lines {
		line = strings.TrimSpace(line)
		switch {
		case keepNext:
			out = append(out, line)
			keepNext = false
		case strings.Contains(line, projectPrefix):
			lines[i] = removePrefix(line, projectPrefix)
			out = append(out, lines[i])
			keepNext = true
		}
	}

	return strings.Join(out, "\n")
}

// MapPath returns a map of the stack trace.
// The keys are the callers and the values are the source lines.
func MapPath(s string) map[string]any {
	lines := strings.Split(s, "\n")

	var out = make(map[string]any)
	var caller string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		switch {
		case caller != "":
			out[caller] = line
			caller = ""
		case strings.Contains(line, projectPrefix):
			caller = removeMemoryAddress(removePrefix(line, projectPrefix))
			out[caller] = caller
		}
	}
	return out
}

func removePrefix(line string, prefix string) string {
	index := strings.Index(line, prefix)
	return line[index:]
}

func removeMemoryAddress(line string) string {
	index := strings.LastIndex(line, " (0x")
	if index < 0 {
		return line
	}
	return line[:index]
}
