// Package schema validates inbound realtime payloads before the sync engine
// acts on them. The socket speaks duck-typed JSON; a malformed frame should
// be dropped at the boundary, not half-applied to client state.
package schema

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const notificationSchemaJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["id", "message"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"message": {"type": "string"},
		"type": {"type": "string"},
		"task_id": {"type": "string"},
		"is_read": {"type": "boolean"},
		"created_at": {"type": "string"}
	}
}`

const taskEventSchemaJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["task_id"],
	"properties": {
		"task_id": {"type": "string", "minLength": 1},
		"title": {"type": "string"},
		"actor_id": {"type": "string"},
		"deleted_by": {"type": "string"}
	}
}`

const pushSchemaJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["title", "body"],
	"properties": {
		"title": {"type": "string"},
		"body": {"type": "string"},
		"data": {
			"type": "object",
			"properties": {
				"type": {"type": "string"},
				"task_id": {"type": "string"},
				"url": {"type": "string"},
				"notification_id": {"type": "string"},
				"timestamp": {"type": "string"}
			}
		}
	}
}`

// Validator holds the compiled schemas for the realtime event payloads.
type Validator struct {
	notification *jsonschema.Schema
	task         *jsonschema.Schema
	push         *jsonschema.Schema
}

// NewValidator compiles the embedded schemas. Compilation failure is a
// programming error, so this is the only constructor and it returns error
// rather than panicking to keep startup diagnostics uniform.
func NewValidator() (*Validator, error) {
	v := &Validator{}
	var err error
	if v.notification, err = compile("notification.json", notificationSchemaJSON); err != nil {
		return nil, err
	}
	if v.task, err = compile("task-event.json", taskEventSchemaJSON); err != nil {
		return nil, err
	}
	if v.push, err = compile("push.json", pushSchemaJSON); err != nil {
		return nil, err
	}
	return v, nil
}

func compile(name, schemaJSON string) (*jsonschema.Schema, error) {
	// jsonschema.UnmarshalJSON keeps numbers as json.Number, which the
	// validator requires.
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", name, err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		return nil, fmt.Errorf("add %s: %w", name, err)
	}
	sch, err := c.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	return sch, nil
}

// ValidateNotification checks a raw notification payload.
func (v *Validator) ValidateNotification(raw []byte) error {
	return validate(v.notification, raw)
}

// ValidateTaskEvent checks a raw task-created/updated/deleted payload.
func (v *Validator) ValidateTaskEvent(raw []byte) error {
	return validate(v.task, raw)
}

// ValidatePush checks a raw push payload.
func (v *Validator) ValidatePush(raw []byte) error {
	return validate(v.push, raw)
}

func validate(sch *jsonschema.Schema, raw []byte) error {
	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := sch.Validate(parsed); err != nil {
		return fmt.Errorf("payload rejected: %w", err)
	}
	return nil
}
