package variation

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/ellypaws/macrotune/pkg/logger"
	"github.com/ellypaws/macrotune/pkg/macro"
)

// Variations is one source macro with its prompt and the three rewrites.
type Variations struct {
	Filename string
	Prompt   string
	V1       string
	V2       string
	V3       string
}

// Extract reads every *.json macro in dir and generates variations for those
// with a prompt. Files that fail to parse are logged and skipped. Results are
// sorted by filename.
func Extract(ctx context.Context, dir string, log logger.Logger) ([]Variations, error) {
	log = logger.OrDiscard(log)

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var out []Variations
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := macro.Read(file)
		if err != nil {
			log.Warnf("Error reading %s: %v", file, err)
			continue
		}
		prompt, ok := doc.Prompt()
		if !ok {
			log.Debugf("skipping %s: no prompt", file)
			continue
		}
		v := Generate(prompt)
		out = append(out, Variations{
			Filename: filepath.Base(file),
			Prompt:   prompt,
			V1:       v[0],
			V2:       v[1],
			V3:       v[2],
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	log.Infof("extracted prompts from %d of %d files", len(out), len(files))
	return out, nil
}
