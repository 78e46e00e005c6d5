package variation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/ellypaws/macrotune/pkg/logger"
	"github.com/ellypaws/macrotune/pkg/macro"
)

// Materializer writes one macro file per expanded row.
type Materializer struct {
	// Suffix returns the token appended to the source stem. Defaults to the
	// first eight characters of a random UUID.
	Suffix func() string
	Log    logger.Logger
}

// Report counts what a run did.
type Report struct {
	Written []string
	Skipped int
}

// ShortID is the default filename suffix.
func ShortID() string {
	return uuid.NewString()[:8]
}

// Materialize reads sourceDir/<row.Filename>, swaps in the row's prompt and
// writes outDir/<stem>_<suffix>.json, where stem is the base name of the
// source without its extension. Unreadable sources and failed writes are
// logged and skipped.
func (m Materializer) Materialize(ctx context.Context, rows []Row, sourceDir, outDir string) (Report, error) {
	log := logger.OrDiscard(m.Log)
	suffix := m.Suffix
	if suffix == nil {
		suffix = ShortID
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return Report{}, fmt.Errorf("failed to create %s: %w", outDir, err)
	}

	var report Report
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		source := filepath.Join(sourceDir, row.Filename)
		doc, err := macro.Read(source)
		if err != nil {
			log.Warnf("Error reading %s: %v", source, err)
			report.Skipped++
			continue
		}

		doc, err = doc.WithPrompt(row.Prompt)
		if err != nil {
			log.Warnf("Error setting prompt for %s: %v", source, err)
			report.Skipped++
			continue
		}

		base := filepath.Base(row.Filename)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		target := filepath.Join(outDir, fmt.Sprintf("%s_%s.json", stem, suffix()))
		if err := os.WriteFile(target, doc, 0644); err != nil {
			log.Errorf("Error writing %s: %v", target, err)
			report.Skipped++
			continue
		}

		log.Infof("Created %s", target)
		report.Written = append(report.Written, target)
	}
	return report, nil
}
