package searchschemas

import (
	"context"
	stdliberrors "errors"
	"fmt"

	"schema-host/internal/catalog"
	"schema-host/internal/common/errors"
	"schema-host/internal/common/logger"
	"schema-host/internal/common/validation"
)

const TaskType = "search"

var InputSchema = validation.MustCompileInput(`{
	"type": "object",
	"properties": {
		"extension": {"type": "string"},
		"query":     {"type": "string", "maxLength": 500},
		"from":      {"type": "integer", "minimum": 0},
		"size":      {"type": "integer", "minimum": 0, "maximum": 100}
	}
}`)

type Searcher interface {
	Search(ctx context.Context, q catalog.Query) (*catalog.SearchResult, error)
}

type Handler struct {
	searcher Searcher
	logger   logger.Logger
}

func NewHandler(searcher Searcher, log logger.Logger) *Handler {
	return &Handler{
		searcher: searcher,
		logger:   log.WithFields(map[string]interface{}{"requestKind": TaskType}),
	}
}

// Execute searches the caller's own schemas. An empty query lists them.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	res, err := h.searcher.Search(ctx, catalog.Query{
		Tenant: input.Extension,
		Text:   input.Query,
		From:   input.From,
		Size:   input.Size,
	})
	if err != nil {
		if stdliberrors.Is(err, catalog.ErrCatalogUnavailable) {
			return nil, errors.NewElasticsearchConnectionFailedError(err)
		}
		return nil, errors.NewSearchQueryFailedError("catalog_search", err)
	}

	h.logger.Debug("catalog searched", map[string]interface{}{
		"tenant": input.Extension, "total": res.Total,
	})
	return &Output{
		Message: fmt.Sprintf("Found %d schemas", res.Total),
		Total:   res.Total,
		Results: res.Hits,
	}, nil
}
