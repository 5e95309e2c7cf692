package scriptrunner

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// sqlServerDialect targets Microsoft SQL Server, the database sqlcmd talks to.
type sqlServerDialect struct{}

func (sqlServerDialect) placeholder() sq.PlaceholderFormat {
	return sq.AtP
}

// createTableSql guards the CREATE with OBJECT_ID since SQL Server has no
// CREATE TABLE IF NOT EXISTS.
func (sqlServerDialect) createTableSql(table string) string {
	return fmt.Sprintf(`
      IF OBJECT_ID(N'%s', N'U') IS NULL
      CREATE TABLE %s (
        ScriptName NVARCHAR(255) NOT NULL,
        AppliedOn DATETIME2 NOT NULL,
        Status NVARCHAR(20) NOT NULL,
        ErrorMessage NVARCHAR(MAX) NULL,
        CONSTRAINT PK_%s PRIMARY KEY (ScriptName, AppliedOn)
      );`, table, table, strings.ReplaceAll(table, ".", "_"))
}

func (sqlServerDialect) dropTableSql(table string) string {
	return fmt.Sprintf(`
      IF OBJECT_ID(N'%s', N'U') IS NOT NULL
      DROP TABLE %s;`, table, table)
}
