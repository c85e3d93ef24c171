package warehouse

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/justapithecus/crease/types"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, _, err := Open(t.Context(), Config{
		Driver:       "sqlite3",
		URL:          filepath.Join(t.TempDir(), "warehouse.db"),
		PingTimeout:  time.Second,
		MaxOpenConns: 1,
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func teamsSpec() TableSpec {
	return TableSpec{
		Name:        "teams",
		Kind:        Dimension,
		Artifact:    "clean/teams",
		Columns:     []string{"team_id", "team_name", "team_short_name"},
		IDCols:      []string{"team_id"},
		ColumnTypes: map[string]string{"team_id": "INTEGER"},
	}
}

func goaliesSpec() TableSpec {
	return TableSpec{
		Name:        "goalies",
		Kind:        Dimension,
		Artifact:    "clean/goalies",
		Columns:     []string{"goalie_id", "goalie_name"},
		IDCols:      []string{"goalie_id"},
		ColumnTypes: map[string]string{"goalie_id": "INTEGER"},
	}
}

func teamGoaliesSpec() TableSpec {
	return TableSpec{
		Name:     "team_goalies",
		Kind:     Fact,
		Artifact: "clean/team_goalies",
		Columns:  []string{"team_id", "season", "goalie_id"},
		IDCols:   []string{"team_id", "season"},
		MergeCols: map[string]Reference{
			"team_id":   {Table: "teams", Column: "team_id"},
			"goalie_id": {Table: "goalies", Column: "goalie_id"},
		},
		ColumnTypes: map[string]string{"team_id": "INTEGER", "goalie_id": "INTEGER"},
	}
}

func createTables(t *testing.T, db *sql.DB, specs ...TableSpec) {
	t.Helper()
	if err := CreateSchema(t.Context(), db, specs); err != nil {
		t.Fatalf("CreateSchema failed: %v", err)
	}
}

func table(t *testing.T, columns []string, rows ...[]any) *types.Table {
	t.Helper()
	tbl := types.NewTable(columns...)
	for _, r := range rows {
		if err := tbl.Append(r...); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	return tbl
}

func countRows(t *testing.T, db *sql.DB, name string) int {
	t.Helper()
	var n int
	if err := db.QueryRowContext(t.Context(), "SELECT COUNT(*) FROM "+quoteIdent(name)).Scan(&n); err != nil {
		t.Fatalf("count %s failed: %v", name, err)
	}
	return n
}
