package events

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Topics carried by the bus.
const (
	TopicTerminal  = "lectern_terminal"
	TopicArtifacts = "lectern_artifacts"
)

// TerminalEvent reports that an execution reached an infrastructure-level
// terminal status without the workflow completing normally.
// Input is the raw payload the execution was started with.
type TerminalEvent struct {
	ExecutionID string          `json:"executionId"`
	Status      string          `json:"status"`
	Input       json.RawMessage `json:"input"`
	Cause       string          `json:"cause,omitempty"`
}

// Artifact job outcomes.
const (
	ArtifactSucceeded = "SUCCEEDED"
	ArtifactFailed    = "FAILED"
)

// ArtifactSignal reports completion of an external extraction job.
type ArtifactSignal struct {
	JobID     string `json:"jobId"`
	Status    string `json:"status"`
	OutputRef string `json:"outputRef,omitempty"`
	Error     string `json:"error,omitempty"`
}

//go:embed schemas/*.json
var schemaFS embed.FS

var schemaFiles = map[string]string{
	TopicTerminal:  "schemas/terminal.json",
	TopicArtifacts: "schemas/artifact.json",
}

// Validator checks envelopes against the JSON Schema registered for their topic.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewValidator compiles the embedded envelope schemas.
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	v := &Validator{schemas: make(map[string]*jsonschema.Schema, len(schemaFiles))}

	for topic, file := range schemaFiles {
		data, err := schemaFS.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", file, err)
		}
		if err := compiler.AddResource(file, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", file, err)
		}
		schema, err := compiler.Compile(file)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", file, err)
		}
		v.schemas[topic] = schema
	}

	return v, nil
}

// Validate checks payload against the schema for topic.
// Topics without a schema only need to be well-formed JSON.
func (v *Validator) Validate(topic string, payload []byte) error {
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	schema, ok := v.schemas[topic]
	if !ok {
		return nil
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("envelope does not match schema: %w", err)
	}
	return nil
}
