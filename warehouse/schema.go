package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
)

// CreateTableSQL returns the DDL for spec. Merge columns get a foreign key
// when the referenced spec is in specs and is keyed by the reference key
// alone.
func CreateTableSQL(spec *TableSpec, specs []TableSpec) string {
	var defs []string
	for _, c := range spec.Columns {
		typ := spec.ColumnTypes[c]
		if typ == "" {
			typ = "TEXT"
		}
		def := quoteIdent(c) + " " + typ
		if spec.isIDCol(c) {
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", quoteIdents(spec.IDCols)))

	for _, local := range spec.MergeColumns() {
		ref := spec.MergeCols[local]
		i := slices.IndexFunc(specs, func(s TableSpec) bool { return s.Name == ref.Table })
		if i < 0 || !slices.Equal(specs[i].IDCols, []string{ref.KeyColumn()}) {
			continue
		}
		defs = append(defs, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
			quoteIdent(local), quoteIdent(ref.Table), quoteIdent(ref.KeyColumn())))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		quoteIdent(spec.Name), strings.Join(defs, ",\n\t"))
}

// CreateSchema creates every table in specs, in order, in one transaction.
func CreateSchema(ctx context.Context, db *sql.DB, specs []TableSpec) error {
	for i := range specs {
		if err := specs[i].Validate(); err != nil {
			return err
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range specs {
		if _, err := tx.ExecContext(ctx, CreateTableSQL(&specs[i], specs)); err != nil {
			return fmt.Errorf("create table %s: %w", specs[i].Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
