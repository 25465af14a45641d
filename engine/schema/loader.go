package schema

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/omniql-engine/chatdb/engine/errors"
)

// wrapperKeys may enclose the table mapping in a schema file
var wrapperKeys = map[string]bool{
	"tables":      true,
	"collections": true,
}

// Load reads a YAML or JSON schema file. Declaration order is preserved.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindConfig, "failed to read schema file %s", path)
	}
	return Parse(data)
}

// Parse decodes a schema document. Accepted shapes:
//
//	Students: [ID, Name]            # bare mapping
//	tables: {Students: [ID, Name]}  # wrapped in tables: or collections:
//	- {name: Students, columns: [ID, Name]}
func Parse(data []byte) (*Schema, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, errors.Wrap(err, errors.KindConfig, "failed to parse schema document")
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, errors.New(errors.KindConfig, "schema document is empty")
	}

	node := root.Content[0]
	if node.Kind == yaml.MappingNode && len(node.Content) == 2 && wrapperKeys[strings.ToLower(node.Content[0].Value)] {
		node = node.Content[1]
	}

	var tables []Table
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			var cols []string
			if err := node.Content[i+1].Decode(&cols); err != nil {
				return nil, errors.Wrapf(err, errors.KindConfig, "columns of table %q must be a list of names", node.Content[i].Value)
			}
			tables = append(tables, Table{Name: node.Content[i].Value, Columns: cols})
		}
	case yaml.SequenceNode:
		if err := node.Decode(&tables); err != nil {
			return nil, errors.Wrap(err, errors.KindConfig, "failed to decode table list")
		}
	default:
		return nil, errors.New(errors.KindConfig, "schema must be a mapping of table names to columns")
	}

	return New(tables...)
}

// FromCSVDir derives a schema from the header row of every *.csv file in
// dir. The file name (without extension) becomes the table name.
func FromCSVDir(dir string) (*Schema, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, errors.Wrap(err, errors.KindConfig, "invalid CSV directory pattern")
	}
	sort.Strings(matches)

	tables := make([]Table, 0, len(matches))
	for _, path := range matches {
		header, err := readCSVHeader(path)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		tables = append(tables, Table{Name: name, Columns: header})
	}
	if len(tables) == 0 {
		return nil, errors.Newf(errors.KindConfig, "no CSV files found in %s", dir)
	}
	return New(tables...)
}

func readCSVHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindConfig, "failed to open %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	record, err := r.Read()
	if err == io.EOF {
		return nil, errors.Newf(errors.KindConfig, "%s has no header row", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindConfig, "failed to read header of %s", path)
	}

	header := make([]string, 0, len(record))
	for i, col := range record {
		col = strings.TrimSpace(col)
		if i == 0 {
			col = strings.TrimPrefix(col, "\ufeff")
		}
		if col == "" {
			return nil, errors.New(errors.KindConfig, fmt.Sprintf("%s: empty column name at position %d", path, i+1))
		}
		header = append(header, col)
	}
	return header, nil
}
