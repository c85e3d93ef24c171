package warehouse

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect captures the SQL differences between supported drivers.
type Dialect struct {
	// Driver is the database/sql driver name.
	Driver string
	// numbered placeholders ($1) rather than positional (?).
	numbered bool
}

var (
	// Postgres uses the pgx stdlib driver.
	Postgres = Dialect{Driver: "pgx", numbered: true}
	// SQLite uses the mattn/go-sqlite3 driver.
	SQLite = Dialect{Driver: "sqlite3"}
)

// DialectFor returns the dialect for a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "pgx", "postgres":
		return Postgres, nil
	case "sqlite3", "sqlite":
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver %q (want pgx or sqlite3)", driver)
	}
}

// Placeholder returns the bind marker for the n-th (1-based) argument.
func (d Dialect) Placeholder(n int) string {
	if d.numbered {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Placeholders returns count markers starting at from, comma separated.
func (d Dialect) Placeholders(from, count int) string {
	marks := make([]string, count)
	for i := range marks {
		marks[i] = d.Placeholder(from + i)
	}
	return strings.Join(marks, ", ")
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

// upsertSQL builds the insert statement for spec under its conflict policy.
func (d Dialect) upsertSQL(spec *TableSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) ",
		quoteIdent(spec.Name),
		quoteIdents(spec.Columns),
		d.Placeholders(1, len(spec.Columns)),
		quoteIdents(spec.IDCols),
	)

	var updates []string
	if spec.ConflictPolicy() == ConflictUpdate {
		for _, c := range spec.Columns {
			if !spec.isIDCol(c) {
				updates = append(updates, fmt.Sprintf("%s = excluded.%s", quoteIdent(c), quoteIdent(c)))
			}
		}
	}
	if len(updates) == 0 {
		b.WriteString("DO NOTHING")
	} else {
		b.WriteString("DO UPDATE SET ")
		b.WriteString(strings.Join(updates, ", "))
	}
	return b.String()
}
