// Package variation rewrites macro prompts with synonym tables to multiply the
// fine-tuning set, and materializes the rewritten prompts as new macro files.
package variation

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type term struct {
	word     string
	synonyms [3]string
}

// general vocabulary
var general = []term{
	{"show", [3]string{"display", "visualize", "create"}},
	{"give", [3]string{"provide", "create", "display"}},
	{"create", [3]string{"make", "generate", "build"}},
	{"need", [3]string{"want", "require", "create"}},
	{"chart", [3]string{"visualization", "diagram", "graph"}},
	{"data", [3]string{"information", "stats", "metrics"}},
}

var chartTypes = []term{
	{"pie chart", [3]string{"pie diagram", "circular chart", "pie visualization"}},
	{"bar chart", [3]string{"bar graph", "column chart", "bar visualization"}},
	{"line chart", [3]string{"line graph", "trend chart", "line visualization"}},
}

var layout = []term{
	{"side by side", [3]string{"next to each other", "horizontally aligned", "in a row"}},
	{"arrange", [3]string{"organize", "position", "layout"}},
	{"align", [3]string{"arrange", "position", "organize"}},
}

type pass struct {
	index  int
	tables [][]term
}

var passes = [3]pass{
	{index: 0, tables: [][]term{general}},
	{index: 1, tables: [][]term{chartTypes, layout}},
	{index: 2, tables: [][]term{general, chartTypes, layout}},
}

// Generate returns the three variations of prompt. The first pass swaps general
// vocabulary for its first synonym, the second swaps chart and layout terms for
// their second synonym, the third runs every table with the third synonym.
//
// A matching term lower-cases the whole prompt before its first occurrence is
// replaced, and every result is capitalized, so a prompt without any known term
// still comes back in sentence case.
func Generate(prompt string) [3]string {
	var variants [3]string
	for i, p := range passes {
		variants[i] = substitute(prompt, p)
	}
	return variants
}

func substitute(prompt string, p pass) string {
	out := prompt
	for _, table := range p.tables {
		for _, t := range table {
			lower := strings.ToLower(out)
			if strings.Contains(lower, t.word) {
				out = strings.Replace(lower, t.word, t.synonyms[p.index], 1)
			}
		}
	}
	return capitalize(out)
}

// capitalize upper-cases the first rune and lower-cases the rest.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToTitle(r)) + strings.ToLower(s[size:])
}
