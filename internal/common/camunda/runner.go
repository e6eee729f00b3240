package camunda

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"schema-host/internal/common/config"
	stderrors "schema-host/internal/common/errors"
	"schema-host/internal/common/logger"
	"schema-host/internal/dispatch"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// Dispatcher runs one decoded request.
type Dispatcher interface {
	Resolve(tag string) (dispatch.Kind, error)
	Dispatch(ctx context.Context, req *dispatch.Request) (interface{}, error)
}

// JobSource opens job workers. zbc.Client satisfies it.
type JobSource interface {
	NewJobWorker() worker.JobWorkerBuilderStep1
}

// Runner turns activated jobs into dispatcher requests. Job variables are the
// request body and custom headers are the request headers. The handler output
// completes the job; errors go through the shared job error handler.
type Runner struct {
	dispatcher     Dispatcher
	errors         *stderrors.ErrorHandler
	logger         logger.Logger
	requestTimeout time.Duration

	mu      sync.Mutex
	workers []worker.JobWorker
}

func NewRunner(d Dispatcher, requestTimeout time.Duration, log logger.Logger) *Runner {
	log = log.WithFields(map[string]interface{}{"component": "zeebe-runner"})
	return &Runner{
		dispatcher:     d,
		errors:         stderrors.NewErrorHandler(log),
		logger:         log,
		requestTimeout: requestTimeout,
	}
}

// Start opens a job worker for kind unless the worker config disables it.
func (r *Runner) Start(source JobSource, kind dispatch.Kind, wcfg config.WorkerConfig) {
	if !wcfg.Enabled {
		r.logger.Info("worker disabled", map[string]interface{}{"taskType": kind.String()})
		return
	}

	jw := source.NewJobWorker().
		JobType(kind.String()).
		Handler(r.Handle).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	r.mu.Lock()
	r.workers = append(r.workers, jw)
	r.mu.Unlock()

	r.logger.Info("worker started", map[string]interface{}{
		"taskType":      kind.String(),
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
}

// Handle is the zeebe job handler for every request kind.
func (r *Runner) Handle(client worker.JobClient, job entities.Job) {
	ctx := context.Background()
	if r.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.requestTimeout)
		defer cancel()
	}

	variables, err := r.process(ctx, job)
	if err != nil {
		r.errors.HandleJobError(ctx, client, job, err)
		return
	}

	cmd, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromString(variables)
	if err != nil {
		r.errors.HandleJobError(ctx, client, job, stderrors.NewInternalError(err))
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		r.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	r.logger.Debug("job completed", map[string]interface{}{
		"jobKey":  job.GetKey(),
		"jobType": job.GetType(),
	})
}

// process runs the job through the dispatcher and returns the completion
// variables as a JSON object.
func (r *Runner) process(ctx context.Context, job entities.Job) (string, error) {
	kind, err := r.dispatcher.Resolve(job.GetType())
	if err != nil {
		return "", err
	}

	headers, err := job.GetCustomHeadersAsMap()
	if err != nil {
		return "", stderrors.NewInvalidRequestError(fmt.Sprintf("custom headers: %v", err))
	}

	out, err := r.dispatcher.Dispatch(ctx, &dispatch.Request{
		Kind:      kind,
		Body:      json.RawMessage(job.GetVariables()),
		Headers:   dispatch.NewHeaders(headers),
		Transport: dispatch.TransportZeebe,
		RequestID: strconv.FormatInt(job.GetKey(), 10),
	})
	if err != nil {
		return "", err
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return "", stderrors.NewInternalError(fmt.Errorf("encode output: %w", err))
	}
	if len(raw) == 0 || raw[0] != '{' {
		// completion variables must be a document
		raw, err = json.Marshal(map[string]json.RawMessage{"result": raw})
		if err != nil {
			return "", stderrors.NewInternalError(err)
		}
	}
	return string(raw), nil
}

// Close stops every job worker and waits for in-flight jobs.
func (r *Runner) Close() {
	r.mu.Lock()
	workers := r.workers
	r.workers = nil
	r.mu.Unlock()

	for _, w := range workers {
		w.Close()
	}
	for _, w := range workers {
		w.AwaitClose()
	}
}
