package generateschemas

type Input struct {
	Extension  string                 `json:"extension"`
	Schema     []string               `json:"schema"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

type Output struct {
	Message         string   `json:"message"`
	UploadedSchemas []string `json:"uploaded_schemas"`
	GeneratedCount  int      `json:"generated_count"`
	CreatedSchemas  []string `json:"created_schemas"`
	FailedSchemas   []string `json:"failed_schemas,omitempty"`
}
