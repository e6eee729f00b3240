package preloadobject

type Input struct {
	Extension string `json:"extension"`
	Prompt    string `json:"prompt"`
}

type Output struct {
	Message    string      `json:"message"`
	JSONObject interface{} `json:"json_object"`
	RootSchema string      `json:"root_schema"`
	Attempts   int         `json:"attempts"`
	Warning    string      `json:"billing_warning,omitempty"`
}
