package chatdb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	mysqlbuilders "github.com/omniql-engine/chatdb/engine/builders/mysql"
	"github.com/omniql-engine/chatdb/engine/reverse"
	"github.com/omniql-engine/chatdb/engine/schema"
	"github.com/omniql-engine/chatdb/mapping"
)

// ============================================
// CLIENT STRUCT
// ============================================

// Client answers phrases against a live database. The wrapped connection
// stays owned by the caller.
type Client struct {
	sqlDB      *sql.DB
	mongoDB    *mongo.Database
	dbType     string
	engine     *Engine
	schemaName string

	mu     sync.Mutex
	schema *schema.Schema
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithEngine replaces the default template-only engine
func WithEngine(e *Engine) ClientOption {
	return func(c *Client) { c.engine = e }
}

// WithSchema skips introspection and uses s
func WithSchema(s *schema.Schema) ClientOption {
	return func(c *Client) { c.schema = s }
}

// WithSchemaName sets the information_schema schema to introspect (the
// database name for MySQL)
func WithSchemaName(name string) ClientOption {
	return func(c *Client) { c.schemaName = name }
}

// ============================================
// CONSTRUCTORS
// ============================================

// WrapSQL wraps a SQL database connection speaking MySQL syntax
func WrapSQL(db *sql.DB, opts ...ClientOption) *Client {
	return newClient(&Client{sqlDB: db, dbType: mapping.MySQL}, opts)
}

// WrapMongo wraps a MongoDB database connection
func WrapMongo(db *mongo.Database, opts ...ClientOption) *Client {
	return newClient(&Client{mongoDB: db, dbType: mapping.MongoDB}, opts)
}

func newClient(c *Client, opts []ClientOption) *Client {
	for _, opt := range opts {
		opt(c)
	}
	if c.engine == nil {
		c.engine = New()
	}
	return c
}

// DBType returns the translation target of the wrapped connection
func (c *Client) DBType() string {
	return c.dbType
}

// Schema returns the configured schema, introspecting the database on first use
func (c *Client) Schema(ctx context.Context) (*schema.Schema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.schema != nil {
		return c.schema, nil
	}

	var (
		s   *schema.Schema
		err error
	)
	switch c.dbType {
	case mapping.MySQL:
		s, err = schema.FromSQL(ctx, c.sqlDB, c.schemaName)
	case mapping.MongoDB:
		s, err = schema.FromMongo(ctx, c.mongoDB)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.dbType)
	}
	if err != nil {
		return nil, err
	}
	c.schema = s
	return s, nil
}

// ============================================
// QUERY METHODS
// ============================================

// Translate turns phrase into a query for the wrapped database without running it
func (c *Client) Translate(ctx context.Context, phrase string) (*Result, error) {
	s, err := c.Schema(ctx)
	if err != nil {
		return nil, fmt.Errorf("schema error: %w", err)
	}
	return c.engine.Translate(ctx, phrase, s, c.dbType)
}

// Query translates phrase and executes it, returning one map per row or document
func (c *Client) Query(ctx context.Context, phrase string) ([]map[string]any, error) {
	res, err := c.Translate(ctx, phrase)
	if err != nil {
		return nil, err
	}

	switch c.dbType {
	case mapping.MySQL:
		return c.querySQL(ctx, res)
	case mapping.MongoDB:
		return c.queryMongo(ctx, res)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", c.dbType)
	}
}

// ============================================
// SQL IMPLEMENTATION
// ============================================

// querySQL runs the statement with literals bound as parameters when the
// statement fits the structured model, and verbatim otherwise
func (c *Client) querySQL(ctx context.Context, res *Result) ([]map[string]any, error) {
	query := res.SQL
	var args []interface{}
	if stmt, err := reverse.MySQLToStatement(res.SQL); err == nil {
		query, args = mysqlbuilders.BuildSelectSQL(stmt)
	}

	rows, err := c.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()
	return rowsToMaps(rows)
}

func rowsToMaps(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	results := []map[string]any{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// ============================================
// MONGODB IMPLEMENTATION
// ============================================

func (c *Client) queryMongo(ctx context.Context, res *Result) ([]map[string]any, error) {
	cursor, err := c.mongoDB.Collection(res.Collection).Aggregate(ctx, res.Pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate error: %w", err)
	}
	defer cursor.Close(ctx)

	results := []map[string]any{}
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode error: %w", err)
		}
		results = append(results, bsonToMap(doc))
	}
	return results, cursor.Err()
}

// bsonToMap copies doc, rendering an ObjectID _id as its hex string
func bsonToMap(doc bson.M) map[string]any {
	result := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == "_id" {
			if oid, ok := v.(primitive.ObjectID); ok {
				v = oid.Hex()
			}
		}
		result[k] = v
	}
	return result
}
