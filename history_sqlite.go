package scriptrunner

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// sqliteDialect targets SQLite through go-sqlite3.
type sqliteDialect struct{}

func (sqliteDialect) placeholder() sq.PlaceholderFormat {
	return sq.Question
}

// createTableSql declares AppliedOn as TIMESTAMP so the driver hands back time.Time.
func (sqliteDialect) createTableSql(table string) string {
	return fmt.Sprintf(`
      CREATE TABLE IF NOT EXISTS %s (
        ScriptName TEXT NOT NULL,
        AppliedOn TIMESTAMP NOT NULL,
        Status TEXT NOT NULL,
        ErrorMessage TEXT,
        PRIMARY KEY (ScriptName, AppliedOn)
      );`, table)
}

func (sqliteDialect) dropTableSql(table string) string {
	return fmt.Sprintf(`DROP TABLE IF EXISTS %s;`, table)
}
