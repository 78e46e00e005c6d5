package variation

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-errors/errors"
)

var (
	variationsHeader = []string{"filename", "prompt", "prompt_v1", "prompt_v2", "prompt_v3"}
	rowsHeader       = []string{"filename", "prompt"}
)

var ErrHeader = errors.Errorf("unexpected csv header")

// WriteVariations writes the extraction table with its header.
func WriteVariations(w io.Writer, rows []Variations) error {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, variationsHeader)
	for _, r := range rows {
		records = append(records, []string{r.Filename, r.Prompt, r.V1, r.V2, r.V3})
	}
	return csv.NewWriter(w).WriteAll(records)
}

// ReadVariations reads a table written by WriteVariations. Columns are
// matched by header name so extra columns are ignored.
func ReadVariations(r io.Reader) ([]Variations, error) {
	records, index, err := readTable(r, variationsHeader)
	if err != nil {
		return nil, err
	}
	out := make([]Variations, 0, len(records))
	for _, rec := range records {
		out = append(out, Variations{
			Filename: rec[index["filename"]],
			Prompt:   rec[index["prompt"]],
			V1:       rec[index["prompt_v1"]],
			V2:       rec[index["prompt_v2"]],
			V3:       rec[index["prompt_v3"]],
		})
	}
	return out, nil
}

// WriteRows writes the expanded filename,prompt table.
func WriteRows(w io.Writer, rows []Row) error {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, rowsHeader)
	for _, r := range rows {
		records = append(records, []string{r.Filename, r.Prompt})
	}
	return csv.NewWriter(w).WriteAll(records)
}

// ReadRows reads a table written by WriteRows.
func ReadRows(r io.Reader) ([]Row, error) {
	records, index, err := readTable(r, rowsHeader)
	if err != nil {
		return nil, err
	}
	out := make([]Row, 0, len(records))
	for _, rec := range records {
		out = append(out, Row{Filename: rec[index["filename"]], Prompt: rec[index["prompt"]]})
	}
	return out, nil
}

func readTable(r io.Reader, want []string) ([][]string, map[string]int, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil, ErrHeader
		}
		return nil, nil, err
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, name := range want {
		if _, ok := index[name]; !ok {
			return nil, nil, fmt.Errorf("%w: missing column %q", ErrHeader, name)
		}
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return records, index, nil
}

// WriteFile creates path and its parent directories and hands the file to write.
func WriteFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile opens path and hands the file to read.
func ReadFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, err
	}
	defer f.Close()
	return read(f)
}
