package generator

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/omniql-engine/chatdb/engine/errors"
	"github.com/omniql-engine/chatdb/engine/schema"
	"github.com/omniql-engine/chatdb/mapping"
)

// Request is one phrase to turn into a query
type Request struct {
	Phrase string
	Schema *schema.Schema
	Target string // mapping.MySQL or mapping.MongoDB
}

// Generator produces a query for phrases the deterministic paths cannot handle.
// Output is a SQL statement for MySQL and a db.<collection>.aggregate call for
// MongoDB.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Func adapts a function to Generator
type Func func(ctx context.Context, req Request) (string, error)

// Generate calls f
func (f Func) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// ============================================================================
// REPLY PARSING
// ============================================================================

// ReplyKey is the JSON key a reply carries the query under
func ReplyKey(target string) string {
	if target == mapping.MongoDB {
		return "query"
	}
	return "sql"
}

// ExtractQuery reads the first JSON object in reply and returns its key
// field, falling back to "sql" and "query". Models often wrap the object in
// prose or code fences.
func ExtractQuery(reply, key string) (string, error) {
	start := strings.IndexByte(reply, '{')
	if start < 0 {
		return "", errors.New(errors.KindGenerationFailed, "reply contains no JSON object")
	}

	var obj map[string]interface{}
	dec := json.NewDecoder(strings.NewReader(reply[start:]))
	if err := dec.Decode(&obj); err != nil {
		// the object may be cut short; retry on the span up to the first brace
		end := strings.IndexByte(reply[start:], '}')
		if end < 0 || json.Unmarshal([]byte(reply[start:start+end+1]), &obj) != nil {
			return "", errors.Wrap(err, errors.KindGenerationFailed, "reply is not valid JSON")
		}
	}

	for _, k := range []string{key, "sql", "query"} {
		if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s), nil
		}
	}
	return "", errors.Newf(errors.KindGenerationFailed, "reply has no %q field", key)
}
