package deleteschemas

type Input struct {
	Extension string   `json:"extension"`
	Schema    []string `json:"schema"`
}

type Output struct {
	Message      string   `json:"message"`
	DeletedFiles []string `json:"deleted_files"`
	FailedFiles  []string `json:"failed_files,omitempty"`
}
