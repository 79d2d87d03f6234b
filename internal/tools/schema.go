package tools

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var schemaCache sync.Map

func compileSchema(name string, params map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	key := string(raw)
	if cached, ok := schemaCache.Load(key); ok {
		return cached.(*jsonschema.Schema), nil
	}
	compiled, err := jsonschema.CompileString(name+".schema.json", key)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

// ValidateArguments compiles t's declared JSON schema and validates args
// against it before Execute runs, catching malformed tool-call arguments
// an LLM produced (truncated JSON, wrong types, missing required fields)
// before they reach a tool body.
func ValidateArguments(t Tool, args map[string]any) error {
	params := t.Parameters()
	if len(params) == 0 {
		return nil
	}
	schema, err := compileSchema(t.Name(), params)
	if err != nil {
		return fmt.Errorf("tools: compile schema for %s: %w", t.Name(), err)
	}

	argsJSON, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("tools: marshal arguments for %s: %w", t.Name(), err)
	}
	var decoded any
	if err := json.Unmarshal(argsJSON, &decoded); err != nil {
		return fmt.Errorf("tools: decode arguments for %s: %w", t.Name(), err)
	}
	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("tools: %s: arguments do not match schema: %w", t.Name(), err)
	}
	return nil
}
