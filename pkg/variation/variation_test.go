package variation

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		prompt string
		want   [3]string
	}{
		{
			prompt: "show planets of solar system in a pie chart",
			want: [3]string{
				"Display planets of solar system in a pie visualization",
				"Show planets of solar system in a circular chart",
				"Build planets of solar system in a pie graph",
			},
		},
		{
			prompt: "Arrange the bar chart and line chart side by side",
			want: [3]string{
				"Arrange the bar visualization and line chart side by side",
				"Position the column chart and trend chart horizontally positioned",
				"Layout the bar graph and line visualization in a row",
			},
		},
		{
			prompt: "Hello World",
			want:   [3]string{"Hello world", "Hello world", "Hello world"},
		},
		{
			prompt: "ÉCLAIR data",
			want:   [3]string{"Éclair information", "Éclair data", "Éclair metrics"},
		},
		{
			prompt: "",
			want:   [3]string{"", "", ""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			assert.Equal(t, tt.want, Generate(tt.prompt))
		})
	}
}

func TestGenerateReplacesFirstOccurrenceOnly(t *testing.T) {
	got := Generate("show data and more data")
	assert.Equal(t, "Display information and more data", got[0])
}

func TestCapitalize(t *testing.T) {
	assert.Equal(t, "Abc def", capitalize("aBC DEF"))
	assert.Equal(t, "1st place", capitalize("1st Place"))
	assert.Equal(t, "", capitalize(""))
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
}

func TestExtract(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"macro_b.json":  `{"prompt": "give data", "chartType": "table"}`,
		"macro_a.json":  `{"prompt": "show planets of solar system in a pie chart"}`,
		"broken.json":   `{"prompt": `,
		"noprompt.json": `{"chartType": "bar"}`,
		"notes.txt":     `show me`,
	})

	got, err := Extract(context.Background(), dir, nil)
	require.NoError(t, err)

	want := []Variations{
		{
			Filename: "macro_a.json",
			Prompt:   "show planets of solar system in a pie chart",
			V1:       "Display planets of solar system in a pie visualization",
			V2:       "Show planets of solar system in a circular chart",
			V3:       "Build planets of solar system in a pie graph",
		},
		{
			Filename: "macro_b.json",
			Prompt:   "give data",
			V1:       "Provide information",
			V2:       "Give data",
			V3:       "Display metrics",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractCancelled(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"a.json": `{"prompt":"x"}`})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Extract(ctx, dir, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExpand(t *testing.T) {
	rows := Expand([]Variations{
		{Filename: "a.json", Prompt: "p", V1: "1", V2: "2", V3: "3"},
		{Filename: "b.json", Prompt: "q", V1: "4", V2: "5", V3: "5"},
	})
	want := []Row{
		{"a.json", "p"}, {"a.json", "1"}, {"a.json", "2"}, {"a.json", "3"},
		{"b.json", "q"}, {"b.json", "4"}, {"b.json", "5"}, {"b.json", "5"},
	}
	assert.Equal(t, want, rows)
	assert.Empty(t, Expand(nil))
}

func TestVariationsCSV(t *testing.T) {
	rows := []Variations{{
		Filename: "macro_a.json",
		Prompt:   `show "quoted", with comma`,
		V1:       "Display \"quoted\", with comma",
		V2:       "Show \"quoted\", with comma",
		V3:       "Create \"quoted\", with comma",
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteVariations(&buf, rows))
	assert.True(t, strings.HasPrefix(buf.String(), "filename,prompt,prompt_v1,prompt_v2,prompt_v3\n"))

	got, err := ReadVariations(&buf)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestReadRowsHeader(t *testing.T) {
	_, err := ReadRows(strings.NewReader("name,text\na,b\n"))
	assert.ErrorIs(t, err, ErrHeader)

	_, err = ReadRows(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrHeader)

	rows, err := ReadRows(strings.NewReader("prompt,filename\nhello,a.json\n"))
	require.NoError(t, err)
	assert.Equal(t, []Row{{Filename: "a.json", Prompt: "hello"}}, rows)
}

func TestMaterialize(t *testing.T) {
	source := t.TempDir()
	out := filepath.Join(t.TempDir(), "gen")
	writeFiles(t, source, map[string]string{
		"macro_a.json": "{\n  \"prompt\": \"old\",\n  \"chartType\": \"pie\",\n  \"data\": [1, 2.50]\n}",
		"broken.json":  `{"prompt": `,
	})

	var n int
	m := Materializer{Suffix: func() string {
		n++
		return fmt.Sprintf("%08d", n)
	}}

	report, err := m.Materialize(context.Background(), []Row{
		{Filename: "macro_a.json", Prompt: "new prompt"},
		{Filename: "missing.json", Prompt: "x"},
		{Filename: "broken.json", Prompt: "y"},
		{Filename: "macro_a.json", Prompt: "Ünïcode <b>"},
	}, source, out)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, []string{
		filepath.Join(out, "macro_a_00000001.json"),
		filepath.Join(out, "macro_a_00000002.json"),
	}, report.Written)

	b, err := os.ReadFile(report.Written[0])
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"prompt\": \"new prompt\",\n  \"chartType\": \"pie\",\n  \"data\": [1, 2.50]\n}", string(b))

	b, err = os.ReadFile(report.Written[1])
	require.NoError(t, err)
	assert.Contains(t, string(b), "2.50")
	assert.NotContains(t, string(b), "old")
}

func TestMaterializeUsesBaseName(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "src")
	out := filepath.Join(root, "gen")
	writeFiles(t, root, map[string]string{"outside.json": `{"prompt":"old"}`})
	require.NoError(t, os.MkdirAll(filepath.Join(source, "sub"), 0755))
	writeFiles(t, filepath.Join(source, "sub"), map[string]string{"x.json": `{"prompt":"old"}`})

	m := Materializer{Suffix: func() string { return "00000001" }}
	report, err := m.Materialize(context.Background(), []Row{
		{Filename: "sub/x.json", Prompt: "nested"},
		{Filename: "../outside.json", Prompt: "escaped"},
	}, source, out)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, []string{
		filepath.Join(out, "x_00000001.json"),
		filepath.Join(out, "outside_00000001.json"),
	}, report.Written)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"src", "gen", "outside.json"}, names)
}

func TestShortID(t *testing.T) {
	id := ShortID()
	assert.Len(t, id, 8)
	assert.NotEqual(t, id, ShortID())
}
