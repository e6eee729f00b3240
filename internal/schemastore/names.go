package schemastore

import (
	"fmt"
	"sort"
	"strings"

	"schema-host/internal/generation"
)

var filenameReplacer = strings.NewReplacer(" ", "_", "/", "_", "\\", "_")

// FilenameFor names the object an uploaded schema is stored under: its
// declared $id made path-safe and normalized, or schema_<index>.json when it
// declares none.
func FilenameFor(schema map[string]interface{}, index int) string {
	if id, ok := schema["$id"].(string); ok && strings.TrimSpace(id) != "" {
		return generation.NormalizeID(filenameReplacer.Replace(strings.TrimSpace(id)))
	}
	return fmt.Sprintf("schema_%d.json", index)
}

// PropertiesFile renders key=value lines, one per entry, sorted by key.
func PropertiesFile(props map[string]interface{}) []byte {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%v\n", k, props[k])
	}
	return []byte(b.String())
}

// EndpointsFile renders one endpoint per line.
func EndpointsFile(endpoints []string) []byte {
	return []byte(strings.Join(endpoints, "\n"))
}
