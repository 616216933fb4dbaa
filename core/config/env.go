package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// envVarPattern matches {{ env.NAME }} placeholders.
var envVarPattern = regexp.MustCompile(`\{\{\s*env\.(\w+)\s*\}\}`)

// SubstituteEnvVars replaces every {{ env.NAME }} in value with the variable's
// value. A referenced variable that is unset is an error.
func SubstituteEnvVars(value string) (string, error) {
	result := value
	seen := make(map[string]bool)

	for _, match := range envVarPattern.FindAllStringSubmatch(value, -1) {
		placeholder, name := match[0], match[1]
		if seen[placeholder] {
			continue
		}
		seen[placeholder] = true

		envValue, ok := os.LookupEnv(name)
		if !ok {
			return "", fmt.Errorf("environment variable '%s' not found", name)
		}
		result = strings.ReplaceAll(result, placeholder, envValue)
	}
	return result, nil
}
