package pipeline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/omniql-engine/chatdb/engine/errors"
)

// RawToken is a bare key or value the parser could not classify. It is kept
// verbatim and encodes as a BSON string.
type RawToken string

var (
	callPattern    = regexp.MustCompile(`^db\.(\w+)\.aggregate`)
	numberPattern  = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?$`)
	integerPattern = regexp.MustCompile(`^[+-]?\d+$`)
)

// ============================================================================
// ENTRY POINT
// ============================================================================

// Extract splits a db.<collection>.aggregate([...]) call into the collection
// name and its stages. Keys and values may be single-quoted, double-quoted or
// bare.
func Extract(text string) (string, mongo.Pipeline, error) {
	text = strings.TrimSpace(text)

	m := callPattern.FindStringSubmatch(text)
	if m == nil {
		return "", nil, errors.New(errors.KindInvalidQueryFormat,
			"Invalid query format. Must start with db.collection.aggregate")
	}
	collection := m[1]

	open := strings.IndexByte(text, '[')
	end := strings.LastIndexByte(text, ']')
	if open < 0 || end < open {
		return "", nil, errors.New(errors.KindInvalidQueryFormat,
			"Invalid query format. Must contain aggregation pipeline array")
	}

	body := normalizeEscapedQuotes(text[open+1 : end])
	values, err := parseArray(body)
	if err != nil {
		return "", nil, errors.Wrap(err, errors.KindInvalidPipelineFormat, "Invalid pipeline format")
	}

	stages := make(mongo.Pipeline, 0, len(values))
	for i, v := range values {
		stage, ok := v.(bson.D)
		if !ok {
			return "", nil, errors.Newf(errors.KindInvalidPipelineFormat,
				"Invalid pipeline format: stage %d is not an object", i)
		}
		stages = append(stages, stage)
	}
	return collection, stages, nil
}

// ParseValue parses one value with the same rules Extract applies to stage bodies
func ParseValue(text string) (interface{}, error) {
	v, err := parseValue(text)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInvalidPipelineFormat, "Invalid pipeline format")
	}
	return v, nil
}

// ============================================================================
// RECURSIVE DESCENT
// ============================================================================

func parseValue(s string) (interface{}, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("missing value")
	}

	switch s[0] {
	case '{':
		if s[len(s)-1] != '}' {
			return nil, fmt.Errorf("unterminated object %q", s)
		}
		return parseObject(s[1 : len(s)-1])
	case '[':
		if s[len(s)-1] != ']' {
			return nil, fmt.Errorf("unterminated array %q", s)
		}
		return parseArray(s[1 : len(s)-1])
	case '"', '\'':
		if str, ok := unquote(s); ok {
			return str, nil
		}
		return nil, fmt.Errorf("unterminated string %s", s)
	}

	switch s {
	case "true", "True":
		return true, nil
	case "false", "False":
		return false, nil
	case "null", "None":
		return nil, nil
	}

	if integerPattern.MatchString(s) {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
	}
	if numberPattern.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, nil
		}
	}
	return RawToken(s), nil
}

func parseObject(s string) (bson.D, error) {
	doc := bson.D{}
	parts, err := splitTopLevel(s, ',')
	if err != nil {
		return nil, err
	}
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			// trailing comma
			continue
		}
		idx := indexTopLevel(part, ':')
		if idx < 0 {
			return nil, fmt.Errorf("expected key: value, got %q", strings.TrimSpace(part))
		}
		key, err := parseKey(part[:idx])
		if err != nil {
			return nil, err
		}
		value, err := parseValue(part[idx+1:])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		doc = append(doc, bson.E{Key: key, Value: value})
	}
	return doc, nil
}

func parseArray(s string) (bson.A, error) {
	arr := bson.A{}
	parts, err := splitTopLevel(s, ',')
	if err != nil {
		return nil, err
	}
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		v, err := parseValue(part)
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
	return arr, nil
}

func parseKey(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty key")
	}
	if s[0] == '"' || s[0] == '\'' {
		if key, ok := unquote(s); ok {
			return key, nil
		}
		return "", fmt.Errorf("unterminated key %s", s)
	}
	return s, nil
}

// ============================================================================
// SCANNING
// ============================================================================

// splitTopLevel splits s on sep outside brackets and quotes
func splitTopLevel(s string, sep byte) ([]string, error) {
	var parts []string
	depth := 0
	var quote byte
	start := 0

	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced %q at offset %d", c, i)
			}
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated string")
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced brackets")
	}
	return append(parts, s[start:]), nil
}

// indexTopLevel returns the first sep outside brackets and quotes, or -1
func indexTopLevel(s string, sep byte) int {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '{', '[':
			depth++
		case '}', ']':
			depth--
		case sep:
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// unquote strips matching quotes and resolves backslash escapes
func unquote(s string) (string, bool) {
	if len(s) < 2 || s[len(s)-1] != s[0] {
		return "", false
	}
	q := s[0]
	body := s[1 : len(s)-1]

	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c == q {
			// an unescaped quote ends the string early
			return "", false
		}
		if c != '\\' || i == len(body)-1 {
			sb.WriteByte(c)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case 'u':
			if i+4 < len(body) {
				if r, err := strconv.ParseUint(body[i+1:i+5], 16, 32); err == nil {
					sb.WriteRune(rune(r))
					i += 4
					continue
				}
			}
			sb.WriteString(`\u`)
		default:
			sb.WriteByte(body[i])
		}
	}
	out := sb.String()
	if !utf8.ValidString(out) {
		return "", false
	}
	return out, true
}

// normalizeEscapedQuotes unescapes \" when the text carries no bare double
// quotes, which happens when a stage list arrives JSON-encoded inside a string
func normalizeEscapedQuotes(s string) string {
	if !strings.Contains(s, `\"`) {
		return s
	}
	for i := 0; i < len(s); i++ {
		if s[i] == '"' && (i == 0 || s[i-1] != '\\') {
			return s
		}
	}
	return strings.ReplaceAll(s, `\"`, `"`)
}
