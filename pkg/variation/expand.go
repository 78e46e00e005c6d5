package variation

// Row pairs a source macro filename with one prompt to materialize.
type Row struct {
	Filename string
	Prompt   string
}

// Expand flattens each extraction row into the original prompt followed by
// its three variations.
func Expand(variations []Variations) []Row {
	rows := make([]Row, 0, len(variations)*4)
	for _, v := range variations {
		for _, prompt := range [4]string{v.Prompt, v.V1, v.V2, v.V3} {
			rows = append(rows, Row{Filename: v.Filename, Prompt: prompt})
		}
	}
	return rows
}
