package scriptrunner

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// postgresDialect targets PostgreSQL through pgx.
type postgresDialect struct{}

func (postgresDialect) placeholder() sq.PlaceholderFormat {
	return sq.Dollar
}

// createTableSql creates the schema first when the table name is qualified.
func (postgresDialect) createTableSql(table string) string {
	var b strings.Builder
	if schema, _, ok := strings.Cut(table, "."); ok {
		fmt.Fprintf(&b, "CREATE SCHEMA IF NOT EXISTS %s;\n", schema)
	}
	fmt.Fprintf(&b, `
      CREATE TABLE IF NOT EXISTS %s (
        ScriptName VARCHAR(255) NOT NULL,
        AppliedOn TIMESTAMPTZ NOT NULL,
        Status VARCHAR(20) NOT NULL,
        ErrorMessage TEXT,
        PRIMARY KEY (ScriptName, AppliedOn)
      );`, table)
	return b.String()
}

func (postgresDialect) dropTableSql(table string) string {
	return fmt.Sprintf(`DROP TABLE IF EXISTS %s;`, table)
}
