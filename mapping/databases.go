package mapping

import "strings"

// Target database names accepted by the engine
const (
	MySQL   = "MySQL"
	MongoDB = "MongoDB"
)

// SupportedDatabases lists the translation targets
var SupportedDatabases = []string{
	MySQL,
	MongoDB,
}

// IsSupportedDatabase checks if a database type is supported
func IsSupportedDatabase(dbType string) bool {
	for _, db := range SupportedDatabases {
		if db == dbType {
			return true
		}
	}
	return false
}

// NormalizeDatabase maps loose spellings (mysql, mongo, mongodb) onto a target name
func NormalizeDatabase(dbType string) (string, bool) {
	if IsSupportedDatabase(dbType) {
		return dbType, true
	}
	switch strings.ToLower(strings.TrimSpace(dbType)) {
	case "mysql", "sql":
		return MySQL, true
	case "mongodb", "mongo":
		return MongoDB, true
	}
	return "", false
}
