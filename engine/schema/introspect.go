package schema

import (
	"context"
	"database/sql"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/omniql-engine/chatdb/engine/errors"
)

const columnsQuery = `SELECT table_name, column_name
FROM information_schema.columns
WHERE table_schema = ?
ORDER BY table_name, ordinal_position`

// FromSQL reads tables and columns of schemaName from information_schema.
// For MySQL schemaName is the database name.
func FromSQL(ctx context.Context, db *sql.DB, schemaName string) (*Schema, error) {
	rows, err := db.QueryContext(ctx, columnsQuery, schemaName)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "failed to query information_schema")
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "failed to scan column row")
		}
		if n := len(tables); n == 0 || tables[n-1].Name != table {
			tables = append(tables, Table{Name: table})
		}
		last := &tables[len(tables)-1]
		last.Columns = append(last.Columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "failed to iterate columns")
	}
	return New(tables...)
}

// FromMongo samples the first document of every collection; its keys
// (minus _id) become the columns. Empty collections get no columns.
func FromMongo(ctx context.Context, db *mongo.Database) (*Schema, error) {
	names, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "failed to list collections")
	}
	sort.Strings(names)

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		var doc bson.D
		err := db.Collection(name).FindOne(ctx, bson.D{}).Decode(&doc)
		if err != nil && err != mongo.ErrNoDocuments {
			return nil, errors.Wrapf(err, errors.KindInternal, "failed to sample collection %s", name)
		}

		table := Table{Name: name}
		for _, elem := range doc {
			if elem.Key == "_id" {
				continue
			}
			table.Columns = append(table.Columns, elem.Key)
		}
		tables = append(tables, table)
	}
	return New(tables...)
}
