package searchschemas

import "schema-host/internal/catalog"

type Input struct {
	Extension string `json:"extension"`
	Query     string `json:"query"`
	From      int    `json:"from,omitempty"`
	Size      int    `json:"size,omitempty"`
}

type Output struct {
	Message string        `json:"message"`
	Total   int64         `json:"total"`
	Results []catalog.Hit `json:"results"`
}
