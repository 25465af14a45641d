package validator

import (
	"fmt"

	"github.com/omniql-engine/chatdb/mapping"
)

// Validator validates generated queries before execution
type Validator interface {
	Validate(query string) error
	ValidateWithDetails(query string) (*ValidationResult, error)
}

// ValidationResult contains detailed validation info
type ValidationResult struct {
	Valid      bool   `json:"valid"`
	Error      string `json:"error,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Position   int    `json:"position,omitempty"`   // Character position of error
	NearText   string `json:"near_text,omitempty"`  // Text near the error
	Normalized string `json:"normalized,omitempty"` // canonical form of a valid query
}

// Validate validates a query for the given target
func Validate(query string, dbType string) error {
	switch dbType {
	case mapping.MySQL:
		return ValidateMySQL(query)
	case mapping.MongoDB:
		return ValidateMongoDB(query)
	default:
		return fmt.Errorf("unsupported database type: %s", dbType)
	}
}

// ValidateWithDetails returns detailed validation result
func ValidateWithDetails(query string, dbType string) (*ValidationResult, error) {
	switch dbType {
	case mapping.MySQL:
		return ValidateMySQLWithDetails(query)
	case mapping.MongoDB:
		return ValidateMongoDBWithDetails(query)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
}

// For returns the Validator for a target
func For(dbType string) (Validator, error) {
	switch dbType {
	case mapping.MySQL:
		return MySQL{}, nil
	case mapping.MongoDB:
		return MongoDB{}, nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
}
