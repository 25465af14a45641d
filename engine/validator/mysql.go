package validator

import (
	"regexp"
	"strconv"

	"github.com/xwb1989/sqlparser"

	mysqlbuilders "github.com/omniql-engine/chatdb/engine/builders/mysql"
	"github.com/omniql-engine/chatdb/engine/errors"
	"github.com/omniql-engine/chatdb/engine/reverse"
)

// syntax error at position 8 near 'SELEC'
var positionPattern = regexp.MustCompile(`at position (\d+)(?: near '([^']*)')?`)

// MySQL validates generated SQL
type MySQL struct{}

func (MySQL) Validate(query string) error { return ValidateMySQL(query) }

func (MySQL) ValidateWithDetails(query string) (*ValidationResult, error) {
	return ValidateMySQLWithDetails(query)
}

// ValidateMySQL checks MySQL syntax and rejects anything but a single SELECT
func ValidateMySQL(query string) error {
	stmt, err := sqlparser.Parse(query)
	if err != nil {
		return errors.Wrap(err, errors.KindValidation, "invalid MySQL query")
	}
	if _, ok := stmt.(*sqlparser.Select); !ok {
		return errors.Newf(errors.KindValidation, "only SELECT statements can be executed, got %T", stmt).
			WithSuggestion("Ask for data to read; changes to the database are not generated.")
	}
	return nil
}

// ValidateMySQLWithDetails returns detailed validation result
func ValidateMySQLWithDetails(query string) (*ValidationResult, error) {
	if err := ValidateMySQL(query); err != nil {
		res := &ValidationResult{Valid: false, Error: err.Error()}
		if m := positionPattern.FindStringSubmatch(err.Error()); m != nil {
			res.Position, _ = strconv.Atoi(m[1])
			res.NearText = m[2]
		}
		if s := errors.Suggestions(err); len(s) > 0 {
			res.Suggestion = s[0]
		}
		return res, nil
	}

	res := &ValidationResult{Valid: true}
	if stmt, err := reverse.MySQLToStatement(query); err == nil {
		res.Normalized = mysqlbuilders.FormatSQL(stmt)
	}
	return res, nil
}
