package dataset

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/tidwall/gjson"

	"github.com/ellypaws/macrotune/pkg/llm"
)

const (
	ReasonInvalidJSON     = "Invalid JSON format"
	ReasonMissingMessages = "Missing 'messages' field"
	ReasonNotArray        = "'messages' must be an array"
	ReasonTooFew          = "Each example must have at least 2 messages"
	ReasonMissingFields   = "Each message must have 'role' and 'content'"
	ReasonInvalidRole     = "Invalid role. Must be 'user' or 'assistant'"
)

const maxLine = 64 << 20

// Result is the outcome of validating a training file. Line is 1-based and is
// zero when the file itself could not be read.
type Result struct {
	OK     bool
	Line   int
	Count  int
	Reason string
}

// Message renders the result the way the command line reports it.
func (r Result) Message() string {
	switch {
	case r.OK:
		return fmt.Sprintf("Successfully validated %d training examples", r.Count)
	case r.Line > 0:
		return fmt.Sprintf("Line %d: %s", r.Line, r.Reason)
	default:
		return "Error reading file: " + r.Reason
	}
}

// Validate checks every line and stops at the first violation.
func Validate(r io.Reader) Result {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

	var n int
	for scanner.Scan() {
		n++
		if reason := checkLine(scanner.Bytes()); reason != "" {
			return Result{Line: n, Reason: reason}
		}
	}
	if err := scanner.Err(); err != nil {
		return Result{Reason: err.Error()}
	}
	return Result{OK: true, Count: n}
}

// ValidateFile validates the file at path.
func ValidateFile(path string) Result {
	f, err := os.Open(path)
	if err != nil {
		return Result{Reason: err.Error()}
	}
	defer f.Close()
	return Validate(f)
}

func checkLine(line []byte) string {
	if !gjson.ValidBytes(line) {
		return ReasonInvalidJSON
	}

	example := gjson.ParseBytes(line)
	messages := example.Get("messages")
	switch {
	case !example.IsObject() || !messages.Exists():
		return ReasonMissingMessages
	case !messages.IsArray():
		return ReasonNotArray
	}

	entries := messages.Array()
	if len(entries) < 2 {
		return ReasonTooFew
	}
	for _, message := range entries {
		role, content := message.Get("role"), message.Get("content")
		if !message.IsObject() || !role.Exists() || !content.Exists() {
			return ReasonMissingFields
		}
		if role.Type != gjson.String || !llm.Role(role.Str).Valid() {
			return ReasonInvalidRole
		}
	}
	return ""
}
