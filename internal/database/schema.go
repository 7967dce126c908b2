package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

//go:embed schema.yaml
var schemaYAML []byte

type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite"
)

// Table holds the CREATE statement of one table for every supported dialect.
type Table struct {
	Name   string `yaml:"name"`
	MySQL  string `yaml:"mysql"`
	SQLite string `yaml:"sqlite"`
}

type Schema struct {
	Tables []Table `yaml:"tables"`
}

func LoadSchema() (*Schema, error) {
	var schema Schema
	if err := yaml.Unmarshal(schemaYAML, &schema); err != nil {
		return nil, fmt.Errorf("error parsing schema yaml: %w", err)
	}
	return &schema, nil
}

func (t Table) Statement(dialect Dialect) (string, error) {
	switch dialect {
	case DialectMySQL:
		return t.MySQL, nil
	case DialectSQLite:
		return t.SQLite, nil
	}
	return "", fmt.Errorf("unsupported dialect %q", dialect)
}

// Migrate creates every table that does not exist yet. It is safe to run on
// each deployment.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect, logger *logrus.Entry) error {
	schema, err := LoadSchema()
	if err != nil {
		return err
	}

	for _, table := range schema.Tables {
		stmt, err := table.Statement(dialect)
		if err != nil {
			return err
		}
		logger.Infof("Creating %s table schema", table.Name)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table.Name, err)
		}
	}

	return nil
}
