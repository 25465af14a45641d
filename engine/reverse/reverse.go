package reverse

import (
	"errors"
	"fmt"
	"strings"

	"github.com/omniql-engine/chatdb/engine/models"
	"github.com/omniql-engine/chatdb/mapping"
)

// ============================================================================
// ERRORS
// ============================================================================

var (
	ErrNotSupported = errors.New("SQL shape not supported")
	ErrParseError   = errors.New("failed to parse query")
	ErrEmptyQuery   = errors.New("empty query")
)

// ============================================================================
// MAIN INTERFACE
// ============================================================================

// ToStatement parses a native query into a models.Statement
func ToStatement(query string, dbType string) (*models.Statement, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	switch dbType {
	case mapping.MySQL:
		return MySQLToStatement(query)
	default:
		return nil, fmt.Errorf("%w: unsupported database %s", ErrNotSupported, dbType)
	}
}
