package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/ellypaws/macrotune/pkg/logger"
	"github.com/ellypaws/macrotune/pkg/macro"
)

// DefaultFile is where the inferred schema is written, and the name skipped
// when scanning a directory that already holds one.
const DefaultFile = "schema.json"

type Report struct {
	Found     int
	Processed int
	Skipped   int
}

// InferDir builds a schema from every *.json file in dir except those whose
// base name is listed in exclude. Unreadable files are logged and skipped.
func InferDir(ctx context.Context, dir string, exclude []string, log logger.Logger) (map[string]any, Report, error) {
	log = logger.OrDiscard(log)

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, Report{}, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	log.Infof("Found %d macro files", len(files))

	var (
		builder Builder
		report  = Report{Found: len(files)}
	)
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}
		if slices.Contains(exclude, filepath.Base(file)) {
			continue
		}

		b, err := os.ReadFile(file)
		if err != nil {
			log.Warnf("Error processing %s: %v", file, err)
			report.Skipped++
			continue
		}
		v, err := macro.Decode(b)
		if err != nil {
			log.Warnf("Error processing %s: %v", file, err)
			report.Skipped++
			continue
		}

		builder.Add(v)
		report.Processed++
	}

	log.Infof("Schema generated from %d of %d files", report.Processed, report.Found)
	return builder.Document(), report, nil
}

// Marshal renders the schema with two-space indentation.
func Marshal(schema map[string]any) ([]byte, error) {
	return json.MarshalIndent(schema, "", "  ")
}

// WriteFile writes the schema to path, creating parent directories.
func WriteFile(path string, schema map[string]any) error {
	b, err := Marshal(schema)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0644)
}
