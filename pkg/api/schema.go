package api

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// consensusRequestSchema is the wire contract for POST /verify/consensus.
// Validation runs against the decoded document before any field is used,
// so malformed requests fail with one precise schema error instead of a
// partial decode.
const consensusRequestSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["query"],
	"additionalProperties": false,
	"properties": {
		"query":          {"type": "string", "minLength": 1},
		"mode":           {"type": "string", "enum": ["single", "high", "maximum"]},
		"min_confidence": {"type": "number", "minimum": 0, "maximum": 100},
		"dsl":            {"type": "string"},
		"variables": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name", "type"],
				"additionalProperties": false,
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"type": {"type": "string", "enum": ["Int", "Real", "Bool"]}
				}
			}
		},
		"data":    {"type": "array", "items": {"type": "number"}},
		"context": {"type": "object", "additionalProperties": {"type": "string"}},
		"code":    {"type": "string", "contentEncoding": "base64"}
	}
}`

// logicRequestSchema is the wire contract for POST /verify/logic.
const logicRequestSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["dsl"],
	"additionalProperties": false,
	"properties": {
		"dsl": {"type": "string", "minLength": 1},
		"variables": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name", "type"],
				"additionalProperties": false,
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"type": {"type": "string", "enum": ["Int", "Real", "Bool"]}
				}
			}
		}
	}
}`

func mustCompileSchema(name, doc string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := "https://verdict.schemas.local/api/" + name + ".schema.json"
	if err := c.AddResource(url, strings.NewReader(doc)); err != nil {
		panic(err)
	}
	return c.MustCompile(url)
}

var (
	compiledConsensusSchema = mustCompileSchema("consensus_request", consensusRequestSchema)
	compiledLogicSchema     = mustCompileSchema("logic_request", logicRequestSchema)
)
