package paths

// Routes registered by api.New:
// "/":
// "/schema":
// "/macro/validate":
// "/macro/generate":
// "/variations":
// "/jobs":
// "/jobs/:id":
const (
	Base          = "/"
	Schema        = "/schema"
	MacroValidate = "/macro/validate"
	MacroGenerate = "/macro/generate"
	Variations    = "/variations"
	Jobs          = "/jobs"
	JobByID       = "/jobs/:id"
)
