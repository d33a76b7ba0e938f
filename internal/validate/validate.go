// Package validate checks and normalizes request payloads before they reach
// the service layer.
//
// Payloads are decoded, string fields are trimmed, and the result is checked
// against embedded JSON Schemas. Failures come back as *Error carrying one
// Issue per violation, which the API renders as a 400 response.
package validate

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/omjikush09/aggroso/internal/specs"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://specgen.local/schemas/"

// Public messages for the two failure families.
const (
	MsgInvalidBody   = "Invalid request body"
	MsgInvalidParams = "Invalid route params"
)

// Messages replacing the generic schema wording for well-known fields.
var friendlyMessages = map[string]string{
	"generate.json#/goal": "Goal is required",
	"params.json#/id":     "Spec id is required",
}

// printer renders schema error kinds as English text.
var printer = message.NewPrinter(language.English)

const msgUpdateEmpty = "At least one of tasks or stories must be provided"

// Issue is one validation failure.
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error is returned for any payload that fails validation.
type Error struct {
	Message string
	Issues  []Issue
}

func (e *Error) Error() string {
	if len(e.Issues) == 0 {
		return e.Message
	}
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		if is.Path == "" {
			parts[i] = is.Message
			continue
		}
		parts[i] = is.Path + ": " + is.Message
	}
	return e.Message + ": " + strings.Join(parts, "; ")
}

// AsError reports whether err is (or wraps) a validation error.
func AsError(err error) (*Error, bool) {
	var ve *Error
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// EmptyUpdate is the error for an update naming neither tasks nor stories.
func EmptyUpdate() *Error {
	return &Error{Message: MsgInvalidBody, Issues: []Issue{{Path: "", Message: msgUpdateEmpty}}}
}

// Validator holds the compiled request schemas.
type Validator struct {
	generate *jsonschema.Schema
	update   *jsonschema.Schema
	params   *jsonschema.Schema
}

// New compiles the embedded schemas.
func New() (*Validator, error) {
	c := jsonschema.NewCompiler()

	names := []string{"generate.json", "update.json", "params.json"}
	for _, name := range names {
		raw, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("validate: read schema %s: %w", name, err)
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("validate: parse schema %s: %w", name, err)
		}
		if err := c.AddResource(schemaBaseURL+name, doc); err != nil {
			return nil, fmt.Errorf("validate: add schema %s: %w", name, err)
		}
	}

	v := &Validator{}
	targets := map[string]**jsonschema.Schema{
		"generate.json": &v.generate,
		"update.json":   &v.update,
		"params.json":   &v.params,
	}
	for name, dst := range targets {
		sch, err := c.Compile(schemaBaseURL + name)
		if err != nil {
			return nil, fmt.Errorf("validate: compile schema %s: %w", name, err)
		}
		*dst = sch
	}
	return v, nil
}

// MustNew is New that panics. The schemas are embedded, so failure is a
// build defect.
func MustNew() *Validator {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

// Generate validates a generate request body. Blank optional strings come
// back empty.
func (v *Validator) Generate(body []byte) (specs.GenerateInput, error) {
	var in specs.GenerateInput
	if err := v.decode(v.generate, "generate.json", MsgInvalidBody, body, &in); err != nil {
		return specs.GenerateInput{}, err
	}
	return in, nil
}

// Update validates an update request body. The result names at least one
// collection; present-but-empty arrays stay non-nil.
func (v *Validator) Update(body []byte) (specs.UpdatePayload, error) {
	var p specs.UpdatePayload
	if err := v.decode(v.update, "update.json", MsgInvalidBody, body, &p); err != nil {
		return specs.UpdatePayload{}, err
	}
	if p.IsEmpty() {
		return specs.UpdatePayload{}, EmptyUpdate()
	}
	if issues := duplicateIDs(p); len(issues) > 0 {
		return specs.UpdatePayload{}, &Error{Message: MsgInvalidBody, Issues: issues}
	}
	return p, nil
}

// duplicateIDs reports every task or story whose id repeats an earlier one
// in the same collection. Ids are unique per spec.
func duplicateIDs(p specs.UpdatePayload) []Issue {
	var issues []Issue
	check := func(collection string, ids []string) {
		seen := make(map[string]int, len(ids))
		for i, id := range ids {
			if first, ok := seen[id]; ok {
				issues = append(issues, Issue{
					Path:    fmt.Sprintf("/%s/%d/id", collection, i),
					Message: fmt.Sprintf("duplicate id %q (also at index %d)", id, first),
				})
				continue
			}
			seen[id] = i
		}
	}

	storyIDs := make([]string, len(p.Stories))
	for i, s := range p.Stories {
		storyIDs[i] = s.ID
	}
	taskIDs := make([]string, len(p.Tasks))
	for i, t := range p.Tasks {
		taskIDs[i] = t.ID
	}
	check("stories", storyIDs)
	check("tasks", taskIDs)
	return issues
}

// UpdateValue validates an already-decoded update payload, as received from
// MCP tool arguments.
func (v *Validator) UpdateValue(p specs.UpdatePayload) (specs.UpdatePayload, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return specs.UpdatePayload{}, fmt.Errorf("validate: encode payload: %w", err)
	}
	return v.Update(body)
}

// GenerateValue validates an already-decoded generate input.
func (v *Validator) GenerateValue(in specs.GenerateInput) (specs.GenerateInput, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return specs.GenerateInput{}, fmt.Errorf("validate: encode input: %w", err)
	}
	return v.Generate(body)
}

// SpecID validates and trims a spec id route parameter.
func (v *Validator) SpecID(id string) (string, error) {
	doc := map[string]any{"id": strings.TrimSpace(id)}
	if err := v.params.Validate(doc); err != nil {
		return "", toError(err, "params.json", MsgInvalidParams)
	}
	return doc["id"].(string), nil
}

func (v *Validator) decode(sch *jsonschema.Schema, name, msg string, body []byte, dst any) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return &Error{Message: msg, Issues: []Issue{{Path: "", Message: "malformed JSON: " + err.Error()}}}
	}
	doc = trimStrings(doc, "")

	if err := sch.Validate(doc); err != nil {
		return toError(err, name, msg)
	}

	normalized, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("validate: re-encode: %w", err)
	}
	if err := json.Unmarshal(normalized, dst); err != nil {
		return &Error{Message: msg, Issues: []Issue{{Path: "", Message: err.Error()}}}
	}
	return nil
}

// trimStrings trims every string value except the template enum, which must
// match exactly.
func trimStrings(v any, key string) any {
	switch val := v.(type) {
	case string:
		if key == "template" {
			return val
		}
		return strings.TrimSpace(val)
	case map[string]any:
		for k, child := range val {
			val[k] = trimStrings(child, k)
		}
		return val
	case []any:
		for i, child := range val {
			val[i] = trimStrings(child, key)
		}
		return val
	default:
		return v
	}
}

func toError(err error, schema, msg string) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return fmt.Errorf("validate: %w", err)
	}

	out := ve.BasicOutput()
	seen := map[Issue]bool{}
	var issues []Issue
	for _, unit := range out.Errors {
		if unit.Error == nil {
			continue
		}
		is := Issue{Path: unit.InstanceLocation, Message: unit.Error.Kind.LocalizedString(printer)}
		if friendly, ok := friendlyMessages[schema+"#"+unit.InstanceLocation]; ok {
			is.Message = friendly
		}
		if seen[is] {
			continue
		}
		seen[is] = true
		issues = append(issues, is)
	}
	if len(issues) == 0 {
		issues = []Issue{{Path: "", Message: ve.Error()}}
	}
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Path < issues[j].Path })
	return &Error{Message: msg, Issues: issues}
}
