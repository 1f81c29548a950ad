// Package validation checks request bodies against embedded JSON schemas.
package validation

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Schema names, one per embedded schemas/<name>.json file.
const (
	SchemaWithdrawal         = "withdrawal"
	SchemaDeposit            = "deposit"
	SchemaPaymentStatus      = "payment_status"
	SchemaPaymentLink        = "payment_link"
	SchemaPaymentWebhook     = "payment_webhook"
	SchemaProfilePatch       = "profile_patch"
	SchemaAssignRole         = "assign_role"
	SchemaInvalidateSessions = "invalidate_sessions"
	SchemaSignalCreate       = "signal_create"
	SchemaLogin              = "login"
)

// MaxBodyBytes caps the size of a validated request body.
const MaxBodyBytes = 1 << 20

// BodyField is the field key used for problems with the body as a whole.
const BodyField = "body"

//go:embed schemas/*.json
var schemaFS embed.FS

var printer = message.NewPrinter(language.English)

// Error lists per-field problems. Keys are dotted instance paths.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// SchemaValidator validates documents against the embedded schemas, caching
// compiled schemas by name.
type SchemaValidator struct {
	schemaCache *lru.Cache[string, *jsonschema.Schema]
}

// NewSchemaValidator creates a new validator with LRU caching for compiled schemas
func NewSchemaValidator(cacheSize int) (*SchemaValidator, error) {
	cache, err := lru.New[string, *jsonschema.Schema](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create schema cache: %w", err)
	}
	return &SchemaValidator{schemaCache: cache}, nil
}

// Validate checks doc, as produced by jsonschema.UnmarshalJSON or
// encoding/json, against the named schema. Violations are returned as *Error.
func (v *SchemaValidator) Validate(name string, doc any) error {
	schema, err := v.schema(name)
	if err != nil {
		return err
	}

	if err := schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return &Error{Fields: fieldErrors(ve)}
		}
		return fmt.Errorf("validate %s: %w", name, err)
	}
	return nil
}

// DecodeAndValidate reads a JSON body, validates it against the named schema
// and decodes it into dst.
func (v *SchemaValidator) DecodeAndValidate(r io.Reader, name string, dst any) error {
	raw, err := io.ReadAll(io.LimitReader(r, MaxBodyBytes+1))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(raw) > MaxBodyBytes {
		return &Error{Fields: map[string]string{BodyField: "is too large"}}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return &Error{Fields: map[string]string{BodyField: "is required"}}
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return &Error{Fields: map[string]string{BodyField: "must be valid JSON"}}
	}

	if err := v.Validate(name, doc); err != nil {
		return err
	}

	if dst != nil {
		if err := json.Unmarshal(raw, dst); err != nil {
			return &Error{Fields: map[string]string{BodyField: "has an unexpected shape"}}
		}
	}
	return nil
}

// GetCacheSize reports how many compiled schemas are cached. Surfaced by the
// admin health endpoint.
func (v *SchemaValidator) GetCacheSize() int {
	return v.schemaCache.Len()
}

func (v *SchemaValidator) schema(name string) (*jsonschema.Schema, error) {
	if cached, ok := v.schemaCache.Get(name); ok {
		return cached, nil
	}

	schema, err := compileSchema(name)
	if err != nil {
		return nil, err
	}
	v.schemaCache.Add(name, schema)
	return schema, nil
}

// compileSchema compiles one embedded schema. Formats such as email and uri
// are asserted, not just annotated.
func compileSchema(name string) (*jsonschema.Schema, error) {
	file := "schemas/" + name + ".json"
	content, err := schemaFS.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("unknown schema %q", name)
	}

	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", name, err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft7)
	compiler.AssertFormat()

	if err := compiler.AddResource(file, parsed); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}

	schema, err := compiler.Compile(file)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return schema, nil
}

// fieldErrors flattens the leaves of a validation error into field messages.
// The first message reported for a field wins.
func fieldErrors(ve *jsonschema.ValidationError) map[string]string {
	fields := map[string]string{}
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) > 0 {
			for _, c := range e.Causes {
				walk(c)
			}
			return
		}

		base := strings.Join(e.InstanceLocation, ".")
		switch k := e.ErrorKind.(type) {
		case *kind.Required:
			for _, missing := range k.Missing {
				addField(fields, join(base, missing), "is required")
			}
		case *kind.AdditionalProperties:
			for _, prop := range k.Properties {
				addField(fields, join(base, prop), "is not allowed")
			}
		default:
			if base == "" {
				base = BodyField
			}
			addField(fields, base, e.ErrorKind.LocalizedString(printer))
		}
	}
	walk(ve)

	if len(fields) == 0 {
		fields[BodyField] = "is invalid"
	}
	return fields
}

func join(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}

func addField(fields map[string]string, key, msg string) {
	if _, exists := fields[key]; !exists {
		fields[key] = msg
	}
}
