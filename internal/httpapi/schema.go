package httpapi

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// webhookSchemaJSON constrains the webhook envelope before any mapping
// happens: the payload must be an object whose item is itself an object,
// and the fields we key on must have the right primitive types when
// present. Everything else stays open for schema evolution upstream.
const webhookSchemaJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["item"],
	"properties": {
		"item": {
			"type": "object",
			"properties": {
				"bookingNumber": {"type": "string"},
				"startTime": {"type": "string"},
				"endTime": {"type": "string"},
				"canceled": {"type": "boolean"},
				"accepted": {"type": "boolean"},
				"customer": {"type": "object"},
				"participants": {"type": "object"},
				"price": {"type": "object"}
			}
		},
		"itemId": {"type": "string"},
		"domain": {"type": "string"}
	}
}`

type webhookValidator struct {
	schema *jsonschema.Schema
}

func newWebhookValidator() (*webhookValidator, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(webhookSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse webhook schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("webhook.json", doc); err != nil {
		return nil, fmt.Errorf("add webhook schema: %w", err)
	}
	schema, err := compiler.Compile("webhook.json")
	if err != nil {
		return nil, fmt.Errorf("compile webhook schema: %w", err)
	}
	return &webhookValidator{schema: schema}, nil
}

func (v *webhookValidator) Validate(body []byte) error {
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return err
	}
	return v.schema.Validate(instance)
}
