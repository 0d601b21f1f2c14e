// internal/common/validation/preferences.go
package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"jobhunt-pipeline/internal/common/errors"
	"jobhunt-pipeline/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

// preferencesSchema is the JSON schema every run input must satisfy before
// the pipeline leaves INIT.
var preferencesSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"role": map[string]interface{}{
			"type":      "string",
			"minLength": 2,
		},
		"location": map[string]interface{}{
			"type": "string",
		},
		"techStack": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type":      "string",
				"minLength": 1,
			},
		},
		"minSalary": map[string]interface{}{
			"type":    "integer",
			"minimum": 0,
		},
		"currency": map[string]interface{}{
			"type":      "string",
			"maxLength": 8,
		},
		"resumeRef": map[string]interface{}{
			"type":      "string",
			"minLength": 1,
		},
	},
	"required": []interface{}{"role", "resumeRef"},
}

// ValidatePreferences checks the search preferences against the schema and
// returns a VALIDATION_FAILED error listing every violation.
func ValidatePreferences(prefs models.SearchPreferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return errors.NewValidationFailedError(fmt.Sprintf("marshal preferences: %v", err))
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return errors.NewValidationFailedError(fmt.Sprintf("unmarshal preferences: %v", err))
	}

	schemaLoader := gojsonschema.NewGoLoader(preferencesSchema)
	documentLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return errors.NewValidationFailedError(fmt.Sprintf("schema validation error: %v", err))
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return errors.NewValidationFailedError(strings.Join(errs, "; "))
	}

	return nil
}
