package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"schema-host/internal/common/logger"
)

// DefaultMaxAttempts is the attempt budget per request.
const DefaultMaxAttempts = 3

// Completer turns a system and user instruction into raw model text.
// Implementations must bound each call with a timeout and must not retry.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Validator checks instance against the schema stored under rootID, with
// every document of schemas available for $ref resolution. Schema violations
// come back as violations; err is reserved for failures of the validator
// itself, such as a reference it cannot resolve.
type Validator interface {
	Validate(rootID string, schemas map[string]interface{}, instance interface{}) (violations []string, err error)
}

// Outcome classifies a single attempt.
type Outcome string

const (
	OutcomeSuccess           Outcome = "success"
	OutcomeParseFailure      Outcome = "parse_failure"
	OutcomeSynthesisFailure  Outcome = "synthesis_failure"
	OutcomeValidationFailure Outcome = "validation_failure"
	OutcomeUnresolved        Outcome = "unresolved_schema"
	OutcomeUpstreamFailure   Outcome = "upstream_failure"
)

// Attempt records one generate-then-validate cycle. It never outlives the
// Generate call that produced it.
type Attempt struct {
	Number         int
	Prompt         string
	Raw            string
	DetectedSchema string
	Object         interface{}
	Outcome        Outcome
	Err            string
	Duration       time.Duration
}

// AttemptObserver is notified after every attempt.
type AttemptObserver func(Attempt)

// Engine runs the bounded generation loop. It holds no per-request state and
// is safe for concurrent use.
type Engine struct {
	completer   Completer
	validator   Validator
	maxAttempts int
	observer    AttemptObserver
	logger      logger.Logger
}

type Option func(*Engine)

// WithMaxAttempts overrides the attempt budget.
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithAttemptObserver registers a per-attempt callback.
func WithAttemptObserver(fn AttemptObserver) Option {
	return func(e *Engine) { e.observer = fn }
}

// NewEngine builds an Engine. A nil validator runs the engine without
// schema validation: any well-formed response that names a known schema is
// accepted.
func NewEngine(completer Completer, validator Validator, log logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		completer:   completer,
		validator:   validator,
		maxAttempts: DefaultMaxAttempts,
		logger:      log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ValidationEnabled reports whether candidates are checked against schemas.
func (e *Engine) ValidationEnabled() bool { return e.validator != nil }

// Generate produces an object that satisfies one schema of set.
//
// A nil or empty set fails with ErrEmptySchemaSet before the completer is
// called. A completer failure ends the loop with *UpstreamError. Otherwise
// every outcome, including exhaustion of the attempt budget, is a Result.
func (e *Engine) Generate(ctx context.Context, set *SchemaSet, prompt string) (*Result, error) {
	if set == nil || set.Len() == 0 {
		return nil, ErrEmptySchemaSet
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	log := e.logger.WithFields(map[string]interface{}{"tenant": set.Tenant()})
	system := BuildSystemInstruction(set)
	user := UserInstruction(prompt)

	var store map[string]interface{}
	if e.validator != nil {
		store = validationStore(set)
	}

	for n := 1; n <= e.maxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("generation aborted before attempt %d: %w", n, err)
		}

		final := n == e.maxAttempts
		attempt := Attempt{Number: n, Prompt: user}
		start := time.Now()

		raw, err := e.completer.Complete(ctx, system, user)
		if err != nil {
			attempt.Outcome = OutcomeUpstreamFailure
			attempt.Err = err.Error()
			e.observe(attempt, start)
			log.Error("Completion failed", map[string]interface{}{"attempt": n, "error": err.Error()})
			return nil, &UpstreamError{Attempt: n, Err: err}
		}
		attempt.Raw = raw

		parsed, err := decodeResponse(raw)
		if err != nil {
			msg := fmt.Sprintf("Invalid JSON response from language model: %v", err)
			attempt.Outcome = OutcomeParseFailure
			attempt.Err = msg
			e.observe(attempt, start)
			log.Warn("Attempt produced invalid JSON", map[string]interface{}{"attempt": n, "error": err.Error()})
			if final {
				return failed(msg, n), nil
			}
			user += invalidJSONNote
			continue
		}

		detected, object, synthErr := extract(parsed)
		attempt.DetectedSchema = detected
		attempt.Object = object
		if synthErr != "" {
			msg := "Error generating JSON object: " + synthErr
			attempt.Outcome = OutcomeSynthesisFailure
			attempt.Err = msg
			e.observe(attempt, start)
			log.Warn("Attempt response incomplete", map[string]interface{}{"attempt": n, "error": synthErr})
			if final {
				return failed(msg, n), nil
			}
			user += fmt.Sprintf(retryNote, msg)
			continue
		}

		rootID := NormalizeID(detected)
		if _, err := set.Resolve(rootID); err != nil {
			msg := fmt.Sprintf("Schema '%s' not found in available schemas. Available: [%s]",
				rootID, strings.Join(set.Available(), ", "))
			attempt.Outcome = OutcomeUnresolved
			attempt.Err = msg
			e.observe(attempt, start)
			log.Warn("Detected schema is not in the tenant's set", map[string]interface{}{"attempt": n, "detected": detected})
			return failed(msg, n), nil
		}

		if e.validator == nil {
			attempt.Outcome = OutcomeSuccess
			e.observe(attempt, start)
			return succeeded(object, rootID, n), nil
		}

		violations, err := e.validator.Validate(rootID, store, object)
		if err != nil {
			// the validator could not resolve the schema graph; the candidate is accepted
			log.Warn("Schema validation environment error, accepting candidate", map[string]interface{}{
				"attempt": n,
				"schema":  rootID,
				"error":   err.Error(),
			})
			attempt.Outcome = OutcomeSuccess
			e.observe(attempt, start)
			return succeeded(object, rootID, n), nil
		}

		if len(violations) == 0 {
			attempt.Outcome = OutcomeSuccess
			e.observe(attempt, start)
			return succeeded(object, rootID, n), nil
		}

		msg := strings.Join(violations, "; ")
		attempt.Outcome = OutcomeValidationFailure
		attempt.Err = msg
		e.observe(attempt, start)
		log.Info("Candidate failed schema validation", map[string]interface{}{"attempt": n, "schema": rootID, "error": msg})
		if final {
			return failed(msg, n), nil
		}
		user += fmt.Sprintf(validationNote, msg)
	}

	// unreachable while maxAttempts >= 1
	return failed("Maximum attempts reached", e.maxAttempts), nil
}

func (e *Engine) observe(a Attempt, start time.Time) {
	if e.observer == nil {
		return
	}
	a.Duration = time.Since(start)
	e.observer(a)
}

// decodeResponse parses a completion, keeping numbers as the model wrote them.
func decodeResponse(raw string) (interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(StripCodeFence(raw)))
	dec.UseNumber()
	var parsed interface{}
	if err := dec.Decode(&parsed); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("invalid character after top-level value")
	}
	return parsed, nil
}

// extract pulls detected_schema and json_object out of a parsed response.
// A non-empty reason means the response is unusable.
func extract(parsed interface{}) (detected string, object interface{}, reason string) {
	m, ok := parsed.(map[string]interface{})
	if !ok {
		return "", nil, "response is not a JSON object"
	}
	detected, _ = m["detected_schema"].(string)
	object = m["json_object"]
	if strings.TrimSpace(detected) == "" || isBlank(object) {
		return detected, object, "Invalid response format, detected_schema and json_object are both required"
	}
	return detected, object, ""
}

// validationStore maps every addressable name of every document to its body
// so $ref targets resolve by identifier or filename.
func validationStore(set *SchemaSet) map[string]interface{} {
	store := make(map[string]interface{}, set.Len()*2)
	for _, doc := range set.Documents() {
		store[doc.Key()] = doc.Body
	}
	for _, doc := range set.Documents() {
		if fn := NormalizeID(doc.Filename); fn != "" {
			if _, taken := store[fn]; !taken {
				store[fn] = doc.Body
			}
		}
	}
	return store
}
