package sandbox

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/gustaf30/nexus/internal/plugin"
)

// pollResultSchema is the wire contract for a poll operation. Every
// plugin, built-in or external, must return a value matching this shape.
const pollResultSchema = `{
	"type": "object",
	"required": ["items", "notifications"],
	"properties": {
		"items": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id", "source", "sourceId", "kind", "title", "url", "timestamp", "metadata", "tags"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"source": {"type": "string", "minLength": 1},
					"sourceId": {"type": "string", "minLength": 1},
					"kind": {"type": "string"},
					"title": {"type": "string"},
					"summary": {"type": "string"},
					"url": {"type": "string"},
					"author": {"type": "string"},
					"timestamp": {"type": "integer"},
					"metadata": {"type": "object"},
					"tags": {"type": "array", "items": {"type": "string"}}
				}
			}
		},
		"notifications": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["itemId", "reasons"],
				"properties": {
					"itemId": {"type": "string", "minLength": 1},
					"reasons": {"type": "array", "items": {"type": "string"}, "minItems": 1},
					"urgencyHint": {"type": "string"}
				}
			}
		}
	}
}`

// connectionStatusSchema is the wire contract for a checkConnection
// operation.
const connectionStatusSchema = `{
	"type": "object",
	"required": ["ok", "statusCode"],
	"properties": {
		"ok": {"type": "boolean"},
		"statusCode": {"type": "integer"},
		"message": {"type": "string"}
	}
}`

// contractSchemas holds the compiled result schema per operation.
type contractSchemas struct {
	poll            *jsonschema.Schema
	checkConnection *jsonschema.Schema
}

// compileSchemas compiles the wire contract schemas. Failure here is a
// programming error, so callers treat it as fatal.
func compileSchemas() (*contractSchemas, error) {
	compiler := jsonschema.NewCompiler()

	for name, text := range map[string]string{
		"poll.json":            pollResultSchema,
		"checkConnection.json": connectionStatusSchema,
	} {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(text))
		if err != nil {
			return nil, fmt.Errorf("parsing contract schema %s: %w", name, err)
		}
		if err := compiler.AddResource(name, doc); err != nil {
			return nil, fmt.Errorf("adding contract schema %s: %w", name, err)
		}
	}

	poll, err := compiler.Compile("poll.json")
	if err != nil {
		return nil, fmt.Errorf("compiling poll schema: %w", err)
	}
	check, err := compiler.Compile("checkConnection.json")
	if err != nil {
		return nil, fmt.Errorf("compiling checkConnection schema: %w", err)
	}

	return &contractSchemas{poll: poll, checkConnection: check}, nil
}

// validate checks a raw plugin result against the contract schema for op.
func (s *contractSchemas) validate(op plugin.Operation, raw []byte) error {
	var schema *jsonschema.Schema
	switch op {
	case plugin.OpPoll:
		schema = s.poll
	case plugin.OpCheckConnection:
		schema = s.checkConnection
	default:
		return fmt.Errorf("unknown operation %q", op)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("result is not valid JSON: %w", err)
	}
	if err := schema.Validate(inst); err != nil {
		return fmt.Errorf("result does not match %s contract: %w", op, err)
	}
	return nil
}
