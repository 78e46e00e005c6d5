// Package dataset turns macro documents into chat fine-tuning examples and
// checks the resulting JSONL file before it is uploaded.
package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ellypaws/macrotune/pkg/llm"
	"github.com/ellypaws/macrotune/pkg/logger"
	"github.com/ellypaws/macrotune/pkg/macro"
)

// DefaultPrefix selects the generated macro files.
const DefaultPrefix = "macro_"

// Example is one line of the training file.
type Example struct {
	Messages []llm.Message `json:"messages"`
}

// NewExample pairs the prompt with the pretty-printed document it should produce.
func NewExample(doc macro.Document) (Example, error) {
	prompt, ok := doc.Prompt()
	if !ok {
		return Example{}, fmt.Errorf("missing string %q field", macro.PromptField)
	}
	pretty, err := doc.Pretty()
	if err != nil {
		return Example{}, err
	}
	return Example{Messages: []llm.Message{
		llm.UserMessage(prompt),
		llm.AssistantMessage(pretty),
	}}, nil
}

type Report struct {
	Written int
	Skipped int
}

// Build writes one example per <prefix>*.json document in dir to w. Documents
// that cannot be read or parsed, or that have no prompt, are logged and skipped.
func Build(ctx context.Context, dir, prefix string, w io.Writer, log logger.Logger) (Report, error) {
	log = logger.OrDiscard(log)
	if prefix == "" {
		prefix = DefaultPrefix
	}

	files, err := filepath.Glob(filepath.Join(dir, prefix+"*.json"))
	if err != nil {
		return Report{}, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)

	var report Report
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		doc, err := macro.Read(file)
		if err != nil {
			log.Warnf("Error reading %s: %v", file, err)
			report.Skipped++
			continue
		}
		if !doc.HasPrompt() {
			log.Debugf("skipping %s: no prompt", file)
			report.Skipped++
			continue
		}

		example, err := NewExample(doc)
		if err != nil {
			log.Warnf("Error processing %s: %v", file, err)
			report.Skipped++
			continue
		}

		if err := encoder.Encode(example); err != nil {
			return report, fmt.Errorf("failed to write example for %s: %w", file, err)
		}
		report.Written++
	}

	log.Infof("wrote %d training examples, skipped %d", report.Written, report.Skipped)
	return report, nil
}

// BuildFile runs Build into path, creating its parent directories.
func BuildFile(ctx context.Context, dir, prefix, path string, log logger.Logger) (Report, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return Report{}, err
	}

	f, err := os.Create(path)
	if err != nil {
		return Report{}, err
	}

	report, err := Build(ctx, dir, prefix, f, log)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	return report, err
}
