package repository

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// Dialect captures the SQL differences the keyset query builder cares about.
type Dialect interface {
	Name() string
	// Placeholder returns the bind marker for the n-th argument, starting at 1.
	Placeholder(n int) string
	// NumberedPlaceholders reports whether one placeholder may be referenced
	// more than once in a statement.
	NumberedPlaceholders() bool
	QuoteIdentifier(name string) string
}

// Dialects
var (
	Postgres Dialect = postgresDialect{}
	MySQL    Dialect = mysqlDialect{}
)

type postgresDialect struct{}

func (postgresDialect) Name() string               { return "postgres" }
func (postgresDialect) Placeholder(n int) string   { return fmt.Sprintf("$%d", n) }
func (postgresDialect) NumberedPlaceholders() bool { return true }
func (postgresDialect) QuoteIdentifier(name string) string {
	return quoteQualified(name, pq.QuoteIdentifier)
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string               { return "mysql" }
func (mysqlDialect) Placeholder(int) string     { return "?" }
func (mysqlDialect) NumberedPlaceholders() bool { return false }
func (mysqlDialect) QuoteIdentifier(name string) string {
	return quoteQualified(name, func(part string) string {
		return "`" + strings.ReplaceAll(part, "`", "``") + "`"
	})
}

// quoteQualified quotes each dot separated part so "u.created_at" stays a
// qualified reference.
func quoteQualified(name string, quote func(string) string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = quote(p)
	}
	return strings.Join(parts, ".")
}

// DialectFor picks the dialect for a database/sql driver, e.g. db.Driver().
// Unknown drivers get Postgres.
func DialectFor(d driver.Driver) Dialect {
	switch d.(type) {
	case *mysql.MySQLDriver, mysql.MySQLDriver:
		return MySQL
	case *pq.Driver, pq.Driver:
		return Postgres
	default:
		return Postgres
	}
}

// ParseDialect resolves a dialect by name.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	default:
		return nil, fmt.Errorf("unsupported sql dialect: %s", name)
	}
}
