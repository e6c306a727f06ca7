package httpapi

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema/updates.json
var updatesSchemaJSON []byte

const updatesSchemaURL = "jobpulse://schema/updates.json"

func compileUpdatesSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(updatesSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse updates schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(updatesSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add updates schema: %w", err)
	}
	sch, err := c.Compile(updatesSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile updates schema: %w", err)
	}
	return sch, nil
}

// validateBody checks a raw request body against sch. Malformed JSON is
// reported the same way as a schema violation.
func validateBody(sch *jsonschema.Schema, body []byte) error {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return err
	}
	return nil
}
