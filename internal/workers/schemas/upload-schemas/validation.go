package uploadschemas

import "schema-host/internal/common/validation"

// InputSchema checks field types only; presence rules live in Execute so the
// error messages stay specific.
var InputSchema = validation.MustCompileInput(`{
	"type": "object",
	"properties": {
		"extension":           {"type": "string"},
		"schema":              {"type": "array", "items": {"type": "string"}},
		"properties":          {"type": "object"},
		"endpoints":           {"type": "array", "items": {"type": "string"}},
		"google_access_token": {"type": "string"}
	}
}`)
