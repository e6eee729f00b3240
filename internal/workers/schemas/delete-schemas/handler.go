package deleteschemas

import (
	"context"
	"fmt"

	"schema-host/internal/common/errors"
	"schema-host/internal/common/logger"
	"schema-host/internal/common/validation"
)

const TaskType = "del"

var InputSchema = validation.MustCompileInput(`{
	"type": "object",
	"properties": {
		"extension": {"type": "string"},
		"schema":    {"type": "array", "items": {"type": "string"}}
	}
}`)

type Remover interface {
	Remove(ctx context.Context, tenant, filename string) error
}

type Handler struct {
	remover Remover
	logger  logger.Logger
}

func NewHandler(remover Remover, log logger.Logger) *Handler {
	return &Handler{
		remover: remover,
		logger:  log.WithFields(map[string]interface{}{"requestKind": TaskType}),
	}
}

// Execute removes each named file. A file that fails is listed, not fatal.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if len(input.Schema) == 0 {
		return nil, errors.NewInvalidRequestError("schema list is required for delete operation")
	}

	out := &Output{DeletedFiles: []string{}}
	for _, filename := range input.Schema {
		if err := h.remover.Remove(ctx, input.Extension, filename); err != nil {
			h.logger.Warn("schema delete failed", map[string]interface{}{
				"tenant": input.Extension, "filename": filename, "error": err.Error(),
			})
			out.FailedFiles = append(out.FailedFiles, filename)
			continue
		}
		out.DeletedFiles = append(out.DeletedFiles, filename)
	}
	out.Message = fmt.Sprintf("Deleted %d schema files", len(out.DeletedFiles))
	return out, nil
}
