package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"schema-host/internal/common/errors"
	"schema-host/internal/common/logger"
	"schema-host/internal/common/metrics"
	"schema-host/internal/common/observability"
	"schema-host/internal/common/validation"
)

// Handler runs one request kind. The returned value is the response body.
type Handler func(ctx context.Context, req *Request) (interface{}, error)

type Dispatcher struct {
	handlers map[Kind]Handler
	obs      *observability.Observability
	logger   logger.Logger
}

type Option func(*Dispatcher)

// WithObservability records every dispatch through the OpenTelemetry meter.
func WithObservability(obs *observability.Observability) Option {
	return func(d *Dispatcher) { d.obs = obs }
}

func New(log logger.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[Kind]Handler),
		logger:   log.WithFields(map[string]interface{}{"component": "dispatcher"}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register binds h to kind, replacing any earlier handler.
func (d *Dispatcher) Register(kind Kind, h Handler) {
	d.handlers[kind] = h
}

// Registered returns the kinds that have a handler, in AllKinds order.
func (d *Dispatcher) Registered() []Kind {
	var out []Kind
	for _, k := range allKinds {
		if _, ok := d.handlers[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Resolve maps a raw type tag onto a registered kind.
func (d *Dispatcher) Resolve(tag string) (Kind, error) {
	kind, ok := ParseKind(strings.TrimSpace(tag))
	if !ok {
		return "", errors.NewUnrecognizedRequestKindError(tag)
	}
	if _, ok := d.handlers[kind]; !ok {
		return "", errors.NewUnrecognizedRequestKindError(tag)
	}
	return kind, nil
}

// Dispatch runs the handler for req.Kind. Errors are always *errors.StandardError.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) (interface{}, error) {
	h, ok := d.handlers[req.Kind]
	if !ok {
		return nil, errors.NewUnrecognizedRequestKindError(string(req.Kind))
	}

	body, err := ParseBody(req.Body)
	if err != nil {
		return nil, errors.NewInvalidRequestError(fmt.Sprintf("request body is not a JSON object: %v", err))
	}
	req.Body = body

	if req.Kind.RequiresTenant() {
		var probe struct {
			Extension interface{} `json:"extension"`
		}
		_ = json.Unmarshal(body, &probe)
		if s, ok := probe.Extension.(string); !ok || strings.TrimSpace(s) == "" {
			return nil, errors.NewMissingTenantError()
		}
	}

	kind := string(req.Kind)
	metrics.RequestsActive.WithLabelValues(kind).Inc()
	defer metrics.RequestsActive.WithLabelValues(kind).Dec()

	start := time.Now()
	out, herr := h(ctx, req)
	elapsed := time.Since(start)

	code := "OK"
	if herr != nil {
		stdErr := errors.Normalize(herr)
		herr = stdErr
		code = string(stdErr.Code)
		d.logger.Warn("request failed", map[string]interface{}{
			"requestKind": kind,
			"requestId":   req.RequestID,
			"transport":   req.Transport,
			"errorCode":   code,
			"details":     stdErr.Details,
		})
	}

	metrics.RequestsHandled.WithLabelValues(kind, req.Transport, code).Inc()
	metrics.RequestDuration.WithLabelValues(kind, req.Transport).Observe(elapsed.Seconds())
	if d.obs != nil {
		d.obs.RecordRequest(ctx, kind, req.Transport, code, elapsed)
	}
	return out, herr
}

// Typed adapts a typed operation into a Handler. The body is checked against
// schema when one is given, then decoded into I. Inputs implementing
// HeaderBinder receive the request headers.
func Typed[I any, O any](schema *validation.InputSchema, exec func(context.Context, *I) (*O, error)) Handler {
	return func(ctx context.Context, req *Request) (interface{}, error) {
		if schema != nil {
			var generic interface{}
			if err := json.Unmarshal(req.Body, &generic); err != nil {
				return nil, errors.NewInvalidRequestError(err.Error())
			}
			if res := schema.ValidateInput(generic); !res.Valid {
				return nil, errors.NewInvalidRequestError(strings.Join(res.GetErrorMessages(), "; "))
			}
		}

		input := new(I)
		if err := json.Unmarshal(req.Body, input); err != nil {
			return nil, errors.NewInvalidRequestError(fmt.Sprintf("decode body: %v", err))
		}
		if binder, ok := any(input).(HeaderBinder); ok {
			binder.BindHeaders(req.Headers)
		}

		out, err := exec(ctx, input)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}

// WithTimeout bounds every call of h by d. A non-positive d leaves h as is.
func WithTimeout(h Handler, d time.Duration) Handler {
	if d <= 0 {
		return h
	}
	return func(ctx context.Context, req *Request) (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return h(ctx, req)
	}
}
