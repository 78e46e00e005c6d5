// Package macro handles macro documents as raw JSON so that key order,
// formatting and number literals survive every edit.
package macro

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-errors/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// PromptField is the natural-language request every macro carries.
const PromptField = "prompt"

var (
	ErrInvalidJSON = errors.Errorf("invalid JSON document")
	ErrNotObject   = errors.Errorf("document is not a JSON object")
)

// Document is a macro exactly as it was read from disk.
type Document []byte

// Parse checks that b holds a single JSON object.
func Parse(b []byte) (Document, error) {
	if !gjson.ValidBytes(b) {
		return nil, ErrInvalidJSON
	}
	if !gjson.ParseBytes(b).IsObject() {
		return nil, ErrNotObject
	}
	return Document(b), nil
}

// Read loads and parses the macro at path.
func Read(path string) (Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Prompt returns the prompt string, reporting false when the field is
// missing or is not a string.
func (d Document) Prompt() (string, bool) {
	r := gjson.GetBytes(d, PromptField)
	if !r.Exists() || r.Type != gjson.String {
		return "", false
	}
	return r.String(), true
}

// HasPrompt reports whether the prompt key is present at all.
func (d Document) HasPrompt() bool {
	return gjson.GetBytes(d, PromptField).Exists()
}

// WithPrompt returns a copy of the document whose prompt value is replaced.
// Every other byte is left untouched.
func (d Document) WithPrompt(prompt string) (Document, error) {
	b, err := sjson.SetBytes(bytes.Clone(d), PromptField, prompt)
	if err != nil {
		return nil, err
	}
	return Document(b), nil
}

// Pretty indents the document with two spaces, keeping key order and number
// literals. Strings are written unescaped, so \u00e9 comes out as é.
func (d Document) Pretty() (string, error) {
	if !json.Valid(d) {
		return "", ErrInvalidJSON
	}

	decoder := json.NewDecoder(bytes.NewReader(d))
	decoder.UseNumber()

	var (
		out   bytes.Buffer
		stack []level
	)
	for {
		token, err := decoder.Token()
		if err != nil {
			return "", err
		}

		switch token {
		case json.Delim('{'), json.Delim('['):
			separate(&out, stack)
			stack = append(stack, level{object: token == json.Delim('{')})
			out.WriteString(token.(json.Delim).String())
		case json.Delim('}'), json.Delim(']'):
			closing := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if closing.count > 0 {
				newline(&out, len(stack))
			}
			out.WriteString(token.(json.Delim).String())
		default:
			key := len(stack) > 0 && stack[len(stack)-1].object && !stack[len(stack)-1].afterKey
			separate(&out, stack)
			if err := writeScalar(&out, token); err != nil {
				return "", err
			}
			if key {
				stack[len(stack)-1].afterKey = true
			}
		}

		if len(stack) == 0 {
			return out.String(), nil
		}
	}
}

type level struct {
	object   bool
	afterKey bool
	count    int
}

// separate writes what goes before the next key or value at the top level of stack.
func separate(out *bytes.Buffer, stack []level) {
	if len(stack) == 0 {
		return
	}
	top := &stack[len(stack)-1]
	if top.afterKey {
		out.WriteString(": ")
		top.afterKey = false
		return
	}
	if top.count > 0 {
		out.WriteByte(',')
	}
	newline(out, len(stack))
	top.count++
}

func newline(out *bytes.Buffer, depth int) {
	out.WriteByte('\n')
	out.WriteString(strings.Repeat("  ", depth))
}

func writeScalar(out *bytes.Buffer, token json.Token) error {
	switch v := token.(type) {
	case json.Number:
		out.WriteString(v.String())
		return nil
	case nil:
		out.WriteString("null")
		return nil
	}

	var b bytes.Buffer
	encoder := json.NewEncoder(&b)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(token); err != nil {
		return err
	}
	out.Write(bytes.TrimSuffix(b.Bytes(), []byte("\n")))
	return nil
}

// Decode unmarshals the document keeping numbers as json.Number.
func (d Document) Decode() (any, error) {
	return Decode(d)
}

// Decode unmarshals any JSON value keeping numbers as json.Number.
func Decode(b []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(b))
	decoder.UseNumber()
	var v any
	if err := decoder.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := decoder.Token(); err != io.EOF {
		return nil, ErrInvalidJSON
	}
	return v, nil
}
