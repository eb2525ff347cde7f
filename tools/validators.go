package tools

import (
	"fmt"
	"strings"
)

// Validator inspects one argument value and returns a descriptive reason
// when it is unacceptable, or "" when it passes.
type Validator func(value any) string

// String accepts JSON string values.
func String(value any) string {
	if _, ok := value.(string); !ok {
		return fmt.Sprintf("expected string, got %T", value)
	}
	return ""
}

// Number accepts JSON numbers. encoding/json decodes all numbers as float64.
func Number(value any) string {
	switch value.(type) {
	case float64, int, int64:
		return ""
	}
	return fmt.Sprintf("expected number, got %T", value)
}

// Array accepts JSON arrays.
func Array(value any) string {
	if _, ok := value.([]any); !ok {
		return fmt.Sprintf("expected array, got %T", value)
	}
	return ""
}

// Enum accepts only the listed string values.
func Enum(values ...string) Validator {
	return func(value any) string {
		s, ok := value.(string)
		if !ok {
			return fmt.Sprintf("expected string, got %T", value)
		}
		for _, v := range values {
			if s == v {
				return ""
			}
		}
		return fmt.Sprintf("must be one of: %s", strings.Join(values, ", "))
	}
}
