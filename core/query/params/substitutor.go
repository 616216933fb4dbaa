// Package params resolves `{{name}}` placeholders in raw SQL and in the
// filter values of a QueryDefinition.
package params

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dataask/dataask/core/domain"
	"github.com/dataask/dataask/core/query/compiler"
)

// placeholderPattern matches {{name}}; the name is the trimmed interior.
var placeholderPattern = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// Substitute replaces every {{name}} whose name is in values with its SQL
// literal form. Unknown names are left verbatim.
func Substitute(text string, values domain.ParameterValues) string {
	return replace(text, values, compiler.Literal)
}

// SubstituteQueryDefinition returns a copy of def with placeholders in
// string filter values resolved. A value that consists of exactly one known
// placeholder takes the parameter's typed value so the compiler renders it
// by type; placeholders embedded in longer text are replaced with the plain
// text form of the value. Nothing else in def is touched.
func SubstituteQueryDefinition(def domain.QueryDefinition, values domain.ParameterValues) domain.QueryDefinition {
	out := def.Clone()
	if len(values) == 0 {
		return out
	}
	for i, f := range out.Filters {
		s, ok := f.Value.(string)
		if !ok {
			continue
		}
		if name, whole := soleName(s); whole {
			if v, known := values[name]; known {
				out.Filters[i].Value = v
				continue
			}
		}
		out.Filters[i].Value = replace(s, values, plainText)
	}
	return out
}

// Placeholders lists the distinct placeholder names in text, in order of
// first appearance.
func Placeholders(text string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// DefinitionPlaceholders lists placeholder names used by string filter
// values of def.
func DefinitionPlaceholders(def domain.QueryDefinition) []string {
	seen := make(map[string]bool)
	var names []string
	for _, f := range def.Filters {
		s, ok := f.Value.(string)
		if !ok {
			continue
		}
		for _, name := range Placeholders(s) {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

func replace(text string, values domain.ParameterValues, format func(any) string) string {
	if len(values) == 0 {
		return text
	}
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := strings.TrimSpace(match[2 : len(match)-2])
		v, ok := values[name]
		if !ok {
			return match
		}
		return format(v)
	})
}

func soleName(s string) (string, bool) {
	loc := placeholderPattern.FindStringSubmatchIndex(s)
	if loc == nil || loc[0] != 0 || loc[1] != len(s) {
		return "", false
	}
	return strings.TrimSpace(s[loc[2]:loc[3]]), true
}

func plainText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	}
	if lit := compiler.Literal(v); !strings.HasPrefix(lit, "'") {
		return lit
	}
	return fmt.Sprint(v)
}
