package validation

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"activity-logs/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

// generateRequestSchema describes the JSON body accepted by the generate endpoint
const generateRequestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "date": {
      "type": "string",
      "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"
    }
  },
  "required": ["date"],
  "additionalProperties": false
}`

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

// GenerateRequestSchema returns the compiled schema for generate requests
func GenerateRequestSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(generateRequestSchema))
		if schemaErr != nil {
			schemaErr = fmt.Errorf("failed to create schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// Validate checks a JSON document against schema
func Validate(document []byte, schema *gojsonschema.Schema) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("failed to validate: %w", err)
	}

	if !result.Valid() {
		var errors []string
		for _, desc := range result.Errors() {
			errors = append(errors, desc.String())
		}
		return fmt.Errorf("validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

// ParseGenerateRequest validates and unmarshals a generate request body.
// Calendar validity of the date is checked later by the service.
func ParseGenerateRequest(body []byte) (*models.GenerateLogRequest, error) {
	schema, err := GenerateRequestSchema()
	if err != nil {
		return nil, err
	}

	if err := Validate(body, schema); err != nil {
		return nil, err
	}

	var req models.GenerateLogRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}
