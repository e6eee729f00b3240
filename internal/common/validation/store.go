package validation

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var (
	ErrRootSchemaMissing = errors.New("ROOT_SCHEMA_MISSING")
	ErrUnresolvedRef     = errors.New("UNRESOLVED_REFERENCE")
)

// storeBase is the in-memory base URI of store documents. The loader only
// pools documents under canonical absolute URIs.
const storeBase = "mem://schemas/"

// StoreValidator validates instances against one schema of a named store so
// that "$ref": "sibling.json" resolves to another document of the store
// without any network access.
type StoreValidator struct {
	normalizeRef func(string) string
}

type StoreOption func(*StoreValidator)

// WithRefNormalizer rewrites the document part of every non-local reference
// before lookup, so references follow the same naming rule as the store keys.
func WithRefNormalizer(fn func(string) string) StoreOption {
	return func(v *StoreValidator) { v.normalizeRef = fn }
}

func NewStoreValidator(opts ...StoreOption) *StoreValidator {
	v := &StoreValidator{}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks instance against schemas[rootID]. It returns the instance's
// schema violations, or an error when the store itself cannot be loaded,
// compiled or resolved. References outside the store are never fetched.
func (v *StoreValidator) Validate(rootID string, schemas map[string]interface{}, instance interface{}) ([]string, error) {
	if _, ok := schemas[rootID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrRootSchemaMissing, rootID)
	}

	loader := gojsonschema.NewSchemaLoader()

	keys := make([]string, 0, len(schemas))
	for k := range schemas {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		doc, err := v.prepare(schemas[key], schemas)
		if err != nil {
			return nil, fmt.Errorf("register schema %s: %w", key, err)
		}
		if err := loader.AddSchema(storeURI(key), gojsonschema.NewGoLoader(doc)); err != nil {
			return nil, fmt.Errorf("register schema %s: %w", key, err)
		}
	}

	// compiling by reference makes the root's own relative refs resolve
	// against its store URI
	compiled, err := loader.Compile(gojsonschema.NewReferenceLoader(storeURI(rootID)))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", rootID, err)
	}

	result, err := compiled.Validate(gojsonschema.NewGoLoader(instance))
	if err != nil {
		return nil, fmt.Errorf("validate against %s: %w", rootID, err)
	}
	if result.Valid() {
		return nil, nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}
	return violations, nil
}

// storeURI is the pool address of a store key. Keys that already are
// absolute URIs keep their own address.
func storeURI(key string) string {
	if strings.Contains(key, "://") {
		return key
	}
	return storeBase + url.PathEscape(key)
}

// prepare deep-copies a schema body, dropping "$schema" and "$id"/"id" at the
// top level and pointing every document "$ref" at a store URI.
func (v *StoreValidator) prepare(doc interface{}, schemas map[string]interface{}) (interface{}, error) {
	m, ok := doc.(map[string]interface{})
	if !ok {
		return doc, nil
	}
	copied, err := v.copyValue(m, schemas)
	if err != nil {
		return nil, err
	}
	out := copied.(map[string]interface{})
	// the loader only knows drafts 4, 6 and 7; fall back to its hybrid draft
	delete(out, "$schema")
	// declared ids would register the document a second time
	delete(out, "$id")
	if _, isString := out["id"].(string); isString {
		delete(out, "id")
	}
	return out, nil
}

func (v *StoreValidator) copyValue(value interface{}, schemas map[string]interface{}) (interface{}, error) {
	switch t := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			if k == "$ref" {
				if ref, ok := val.(string); ok {
					resolved, err := v.rewriteRef(ref, schemas)
					if err != nil {
						return nil, err
					}
					out[k] = resolved
					continue
				}
			}
			copied, err := v.copyValue(val, schemas)
			if err != nil {
				return nil, err
			}
			out[k] = copied
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			copied, err := v.copyValue(val, schemas)
			if err != nil {
				return nil, err
			}
			out[i] = copied
		}
		return out, nil
	default:
		return value, nil
	}
}

// rewriteRef maps the document part of ref to the store URI of the key it
// names. Local "#..." pointers stay relative to their own document.
func (v *StoreValidator) rewriteRef(ref string, schemas map[string]interface{}) (string, error) {
	if ref == "" || strings.HasPrefix(ref, "#") {
		return ref, nil
	}
	name, fragment, hasFragment := strings.Cut(ref, "#")
	key, ok := v.lookup(name, schemas)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnresolvedRef, ref)
	}
	if hasFragment {
		return storeURI(key) + "#" + fragment, nil
	}
	return storeURI(key), nil
}

func (v *StoreValidator) lookup(name string, schemas map[string]interface{}) (string, bool) {
	name = strings.TrimPrefix(name, "./")
	if v.normalizeRef != nil {
		if key := v.normalizeRef(name); key != "" {
			if _, ok := schemas[key]; ok {
				return key, true
			}
		}
	}
	if _, ok := schemas[name]; ok {
		return name, true
	}
	return "", false
}
