package params

import (
	"github.com/dataask/dataask/core/domain"
	apperrors "github.com/dataask/dataask/core/shared/errors"
)

// ResolveDefaults returns provided merged with the default values of defs
// for parameters that were not provided. A required parameter with neither
// a provided nor a default value is a VALIDATION_ERROR naming it. Provided
// values for undeclared names are kept.
func ResolveDefaults(defs []domain.ParameterDefinition, provided domain.ParameterValues) (domain.ParameterValues, error) {
	resolved := make(domain.ParameterValues, len(provided)+len(defs))
	for k, v := range provided {
		resolved[k] = v
	}
	for _, def := range defs {
		if _, ok := resolved[def.Name]; ok {
			continue
		}
		if def.DefaultValue != nil {
			resolved[def.Name] = def.DefaultValue
			continue
		}
		if def.Required {
			return nil, apperrors.Validation("required parameter '%s' is missing", def.Name)
		}
	}
	return resolved, nil
}
