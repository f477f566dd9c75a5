package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema validates structured model output against a JSON Schema.
type Schema struct {
	name   string
	schema *jsonschema.Schema
}

// CompileSchema compiles a JSON Schema document given as a string.
func CompileSchema(name, src string) (*Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parsing schema %s: %w", name, err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		return nil, fmt.Errorf("adding schema %s: %w", name, err)
	}
	sch, err := c.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compiling schema %s: %w", name, err)
	}
	return &Schema{name: name, schema: sch}, nil
}

// MustCompileSchema is CompileSchema for package-level schema literals.
func MustCompileSchema(name, src string) *Schema {
	s, err := CompileSchema(name, src)
	if err != nil {
		panic(err)
	}
	return s
}

// Decode strips code fences from raw, parses it as a JSON object and
// validates it. The parsed object is returned even when validation fails so
// callers can log what the model produced.
func (s *Schema) Decode(raw string) (map[string]any, error) {
	obj, err := ParseObject(raw)
	if err != nil {
		return nil, err
	}
	if err := s.schema.Validate(obj); err != nil {
		return obj, fmt.Errorf("response does not match schema %s: %w", s.name, err)
	}
	return obj, nil
}

// ParseObject strips code fences and decodes a JSON object.
func ParseObject(raw string) (map[string]any, error) {
	cleaned := StripCodeFences(raw)
	var obj map[string]any
	if err := json.Unmarshal([]byte(cleaned), &obj); err != nil {
		return nil, fmt.Errorf("parsing JSON response: %w", err)
	}
	if obj == nil {
		return nil, fmt.Errorf("parsing JSON response: not an object")
	}
	return obj, nil
}

// StripCodeFences removes a surrounding markdown code fence, including an
// optional language tag on the opening line.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
