package warehouse

import (
	"context"
	"errors"
	"testing"
	"time"
)

var (
	teamCols       = []string{"team_id", "team_name", "team_short_name"}
	goalieCols     = []string{"goalie_id", "goalie_name"}
	teamGoalieCols = []string{"team_id", "season", "goalie_id"}
)

func TestDimensionLoader_LoadsRows(t *testing.T) {
	db := openTestDB(t)
	spec := teamsSpec()
	createTables(t, db, spec)

	data := table(t, teamCols,
		[]any{int64(20), "Flames", "CGY"},
		[]any{int64(6), "Bruins", "BOS"},
	)
	res, err := NewDimensionLoader(db, SQLite, nil).Load(t.Context(), &spec, data)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if res.Inserted != 2 || res.Skipped != 0 || res.RowsIn != 2 {
		t.Errorf("result = %+v", res)
	}

	rows, err := db.QueryContext(t.Context(), `SELECT team_id, team_name, team_short_name FROM teams ORDER BY team_id`)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	defer func() { _ = rows.Close() }()

	type team struct {
		id          int64
		name, short string
	}
	var got []team
	for rows.Next() {
		var tm team
		if err := rows.Scan(&tm.id, &tm.name, &tm.short); err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		got = append(got, tm)
	}
	want := []team{{6, "Bruins", "BOS"}, {20, "Flames", "CGY"}}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("teams = %+v, want %+v", got, want)
	}
}

func TestDimensionLoader_DeduplicatesLastWins(t *testing.T) {
	db := openTestDB(t)
	spec := teamsSpec()
	createTables(t, db, spec)

	data := table(t, teamCols,
		[]any{int64(20), "Flames (old)", "CGY"},
		[]any{int64(6), "Bruins", "BOS"},
		[]any{int64(20), "Flames", "CGY"},
	)
	res, err := NewDimensionLoader(db, SQLite, nil).Load(t.Context(), &spec, data)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if res.Duplicates != 1 || res.Inserted != 2 {
		t.Errorf("result = %+v", res)
	}
	if n := countRows(t, db, "teams"); n != 2 {
		t.Errorf("teams has %d rows, want 2", n)
	}

	var name string
	if err := db.QueryRowContext(t.Context(), `SELECT team_name FROM teams WHERE team_id = 20`).Scan(&name); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if name != "Flames" {
		t.Errorf("team_name = %q, want last occurrence %q", name, "Flames")
	}
}

func TestDimensionLoader_ConflictPolicies(t *testing.T) {
	tests := []struct {
		name     string
		conflict Conflict
		wantName string
		wantSkip int64
	}{
		{"skip preserves existing", "", "Flames", 1},
		{"update overwrites", ConflictUpdate, "Calgary Flames", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openTestDB(t)
			spec := teamsSpec()
			spec.Conflict = tt.conflict
			createTables(t, db, spec)
			loader := NewDimensionLoader(db, SQLite, nil)

			if _, err := loader.Load(t.Context(), &spec, table(t, teamCols, []any{int64(20), "Flames", "CGY"})); err != nil {
				t.Fatalf("first load failed: %v", err)
			}
			res, err := loader.Load(t.Context(), &spec, table(t, teamCols, []any{int64(20), "Calgary Flames", "CGY"}))
			if err != nil {
				t.Fatalf("second load failed: %v", err)
			}
			if res.Skipped != tt.wantSkip {
				t.Errorf("Skipped = %d, want %d", res.Skipped, tt.wantSkip)
			}

			var name string
			if err := db.QueryRowContext(t.Context(), `SELECT team_name FROM teams WHERE team_id = 20`).Scan(&name); err != nil {
				t.Fatalf("query failed: %v", err)
			}
			if name != tt.wantName {
				t.Errorf("team_name = %q, want %q", name, tt.wantName)
			}
		})
	}
}

func TestDimensionLoader_MissingColumn(t *testing.T) {
	db := openTestDB(t)
	spec := teamsSpec()
	createTables(t, db, spec)

	data := table(t, []string{"team_id", "team_name"}, []any{int64(20), "Flames"})
	_, err := NewDimensionLoader(db, SQLite, nil).Load(t.Context(), &spec, data)

	var loadErr *LoadError
	if !errors.As(err, &loadErr) || loadErr.Op != "prepare" {
		t.Fatalf("Load error = %v, want prepare LoadError", err)
	}
	if !errors.Is(err, ErrLoad) {
		t.Error("expected errors.Is(err, ErrLoad)")
	}
	if n := countRows(t, db, "teams"); n != 0 {
		t.Errorf("teams has %d rows after failed load", n)
	}
}

func TestDimensionLoader_NullIdentity(t *testing.T) {
	db := openTestDB(t)
	spec := teamsSpec()
	createTables(t, db, spec)

	data := table(t, teamCols, []any{nil, "Nobody", "NOB"})
	if _, err := NewDimensionLoader(db, SQLite, nil).Load(t.Context(), &spec, data); !errors.Is(err, ErrLoad) {
		t.Fatalf("Load error = %v, want ErrLoad", err)
	}
}

func TestDimensionLoader_StorageFailureRollsBack(t *testing.T) {
	db := openTestDB(t)
	spec := teamsSpec()
	spec.ColumnTypes = map[string]string{"team_id": "INTEGER", "team_name": "TEXT NOT NULL"}
	createTables(t, db, spec)

	data := table(t, teamCols,
		[]any{int64(20), "Flames", "CGY"},
		[]any{int64(6), nil, "BOS"},
	)
	_, err := NewDimensionLoader(db, SQLite, nil).Load(t.Context(), &spec, data)

	var loadErr *LoadError
	if !errors.As(err, &loadErr) || loadErr.Op != "insert" {
		t.Fatalf("Load error = %v, want insert LoadError", err)
	}
	if n := countRows(t, db, "teams"); n != 0 {
		t.Errorf("teams has %d rows, partial dimension load is visible", n)
	}
}

func TestDimensionLoader_CoercesDates(t *testing.T) {
	db := openTestDB(t)
	spec := TableSpec{
		Name:        "seasons",
		Kind:        Dimension,
		Artifact:    "clean/seasons",
		Columns:     []string{"season", "start_date"},
		IDCols:      []string{"season"},
		DateCols:    []string{"start_date"},
		ColumnTypes: map[string]string{"start_date": "TIMESTAMP"},
	}
	createTables(t, db, spec)

	data := table(t, spec.Columns, []any{"20202021", "2021-01-13"})
	if _, err := NewDimensionLoader(db, SQLite, nil).Load(t.Context(), &spec, data); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	var start time.Time
	if err := db.QueryRowContext(t.Context(), `SELECT start_date FROM seasons`).Scan(&start); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if !start.Equal(time.Date(2021, 1, 13, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start_date = %v", start)
	}

	bad := table(t, spec.Columns, []any{"20212022", "13/01/2021"})
	if _, err := NewDimensionLoader(db, SQLite, nil).Load(t.Context(), &spec, bad); !errors.Is(err, ErrLoad) {
		t.Errorf("Load error = %v, want ErrLoad for unparseable date", err)
	}
}

func TestDimensionLoader_RejectsFactSpec(t *testing.T) {
	db := openTestDB(t)
	spec := teamGoaliesSpec()
	if _, err := NewDimensionLoader(db, SQLite, nil).Load(t.Context(), &spec, table(t, teamGoalieCols)); !errors.Is(err, ErrInvalidSpec) {
		t.Fatalf("Load error = %v, want ErrInvalidSpec", err)
	}
}

func TestFactLoader_ResolvesAgainstLoadedDimensions(t *testing.T) {
	db := openTestDB(t)
	teams, goalies, tg := teamsSpec(), goaliesSpec(), teamGoaliesSpec()
	createTables(t, db, teams, goalies, tg)
	dims := NewDimensionLoader(db, SQLite, nil)
	facts := NewFactLoader(db, SQLite, nil)

	if _, err := dims.Load(t.Context(), &teams, table(t, teamCols,
		[]any{int64(20), "Flames", "CGY"},
		[]any{int64(6), "Bruins", "BOS"},
	)); err != nil {
		t.Fatalf("teams load failed: %v", err)
	}

	row := table(t, teamGoalieCols, []any{int64(20), "20202021", int64(8474593)})

	// goalies has not been loaded yet.
	_, err := facts.Load(t.Context(), &tg, row)
	var unresolved *UnresolvedReferenceError
	if !errors.As(err, &unresolved) {
		t.Fatalf("Load error = %v, want UnresolvedReferenceError", err)
	}
	if unresolved.Column != "goalie_id" || unresolved.RefTable != "goalies" {
		t.Errorf("unresolved = %+v", unresolved)
	}
	if len(unresolved.Values) != 1 || unresolved.Values[0] != int64(8474593) {
		t.Errorf("unresolved values = %v", unresolved.Values)
	}
	if !errors.Is(err, ErrUnresolvedReference) {
		t.Error("expected errors.Is(err, ErrUnresolvedReference)")
	}
	if n := countRows(t, db, "team_goalies"); n != 0 {
		t.Errorf("team_goalies has %d rows after failed load", n)
	}

	if _, err := dims.Load(t.Context(), &goalies, table(t, goalieCols,
		[]any{int64(8474593), "Jacob Markstrom"},
	)); err != nil {
		t.Fatalf("goalies load failed: %v", err)
	}

	res, err := facts.Load(t.Context(), &tg, row)
	if err != nil {
		t.Fatalf("fact load failed: %v", err)
	}
	if res.Inserted != 1 || res.Kind != Fact {
		t.Errorf("result = %+v", res)
	}
	if n := countRows(t, db, "team_goalies"); n != 1 {
		t.Errorf("team_goalies has %d rows, want 1", n)
	}
}

func TestFactLoader_UnknownTeamIsUnresolved(t *testing.T) {
	db := openTestDB(t)
	teams, goalies, tg := teamsSpec(), goaliesSpec(), teamGoaliesSpec()
	createTables(t, db, teams, goalies, tg)

	_, _ = NewDimensionLoader(db, SQLite, nil).Load(t.Context(), &goalies, table(t, goalieCols, []any{int64(8474593), "Jacob Markstrom"}))

	_, err := NewFactLoader(db, SQLite, nil).Load(t.Context(), &tg,
		table(t, teamGoalieCols, []any{int64(20), "20202021", int64(8474593)}))

	var unresolved *UnresolvedReferenceError
	if !errors.As(err, &unresolved) || unresolved.Column != "team_id" {
		t.Fatalf("Load error = %v, want unresolved team_id", err)
	}
}

func TestFactLoader_SkipsExistingAndDeduplicates(t *testing.T) {
	db := openTestDB(t)
	teams, goalies, tg := teamsSpec(), goaliesSpec(), teamGoaliesSpec()
	createTables(t, db, teams, goalies, tg)
	dims := NewDimensionLoader(db, SQLite, nil)
	_, _ = dims.Load(t.Context(), &teams, table(t, teamCols, []any{int64(20), "Flames", "CGY"}, []any{int64(6), "Bruins", "BOS"}))
	_, _ = dims.Load(t.Context(), &goalies, table(t, goalieCols, []any{int64(1), "A"}, []any{int64(2), "B"}))

	facts := NewFactLoader(db, SQLite, nil)
	data := table(t, teamGoalieCols,
		[]any{int64(20), "20202021", int64(1)},
		[]any{int64(20), "20202021", int64(2)},
		[]any{int64(6), "20202021", int64(1)},
	)
	res, err := facts.Load(t.Context(), &tg, data)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if res.Duplicates != 1 || res.Inserted != 2 {
		t.Errorf("result = %+v", res)
	}

	res, err = facts.Load(t.Context(), &tg, data)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if res.Inserted != 0 || res.Skipped != 2 {
		t.Errorf("reload result = %+v, want all skipped", res)
	}
	if n := countRows(t, db, "team_goalies"); n != 2 {
		t.Errorf("team_goalies has %d rows, want 2", n)
	}
}

func TestFactLoader_FailureAfterResolutionLeavesTableUnchanged(t *testing.T) {
	db := openTestDB(t)
	teams, goalies, tg := teamsSpec(), goaliesSpec(), teamGoaliesSpec()
	tg.ColumnTypes["season"] = "TEXT NOT NULL CHECK (length(season) = 8)"
	createTables(t, db, teams, goalies, tg)
	dims := NewDimensionLoader(db, SQLite, nil)
	_, _ = dims.Load(t.Context(), &teams, table(t, teamCols, []any{int64(20), "Flames", "CGY"}, []any{int64(6), "Bruins", "BOS"}))
	_, _ = dims.Load(t.Context(), &goalies, table(t, goalieCols, []any{int64(1), "A"}))

	facts := NewFactLoader(db, SQLite, nil)
	if _, err := facts.Load(t.Context(), &tg, table(t, teamGoalieCols, []any{int64(20), "20192020", int64(1)})); err != nil {
		t.Fatalf("seed load failed: %v", err)
	}
	before := countRows(t, db, "team_goalies")

	_, err := facts.Load(t.Context(), &tg, table(t, teamGoalieCols,
		[]any{int64(20), "20202021", int64(1)},
		[]any{int64(6), "bad", int64(1)},
	))
	var loadErr *LoadError
	if !errors.As(err, &loadErr) || loadErr.Op != "insert" {
		t.Fatalf("Load error = %v, want insert LoadError", err)
	}
	if after := countRows(t, db, "team_goalies"); after != before {
		t.Errorf("row count changed from %d to %d", before, after)
	}
}

func TestFactLoader_SubstitutesSurrogateKeys(t *testing.T) {
	db := openTestDB(t)
	venues := TableSpec{
		Name:        "venues",
		Kind:        Dimension,
		Artifact:    "clean/venues",
		Columns:     []string{"venue_name", "venue_key"},
		IDCols:      []string{"venue_name"},
		ColumnTypes: map[string]string{"venue_key": "INTEGER"},
	}
	games := TableSpec{
		Name:        "games",
		Kind:        Fact,
		Artifact:    "clean/games",
		Columns:     []string{"game_id", "venue"},
		IDCols:      []string{"game_id"},
		MergeCols:   map[string]Reference{"venue": {Table: "venues", Column: "venue_name", Key: "venue_key"}},
		ColumnTypes: map[string]string{"game_id": "INTEGER", "venue": "INTEGER"},
	}
	createTables(t, db, venues, games)

	if _, err := NewDimensionLoader(db, SQLite, nil).Load(t.Context(), &venues,
		table(t, venues.Columns, []any{"Scotiabank Saddledome", int64(501)})); err != nil {
		t.Fatalf("venues load failed: %v", err)
	}
	if _, err := NewFactLoader(db, SQLite, nil).Load(t.Context(), &games,
		table(t, games.Columns, []any{int64(2020020001), "Scotiabank Saddledome"}, []any{int64(2020020002), nil})); err != nil {
		t.Fatalf("games load failed: %v", err)
	}

	var venue int64
	if err := db.QueryRowContext(t.Context(), `SELECT venue FROM games WHERE game_id = 2020020001`).Scan(&venue); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if venue != 501 {
		t.Errorf("venue = %d, want surrogate key 501", venue)
	}
	if n := countRows(t, db, "games"); n != 2 {
		t.Errorf("games has %d rows, want 2 (null reference passes through)", n)
	}
}

type stubResolver struct {
	calls int
	res   Resolution
	err   error
}

func (s *stubResolver) Resolve(_ context.Context, _ Reference, _ []any) (Resolution, error) {
	s.calls++
	return s.res, s.err
}

func TestFactLoader_LoadWithResolver(t *testing.T) {
	db := openTestDB(t)
	tg := teamGoaliesSpec()
	createTables(t, db, tg)

	resolver := &stubResolver{res: Resolution{"20": int64(20), "8474593": int64(8474593)}}
	res, err := NewFactLoader(db, SQLite, nil).LoadWith(t.Context(), &tg,
		table(t, teamGoalieCols, []any{int64(20), "20202021", int64(8474593)}), resolver)
	if err != nil {
		t.Fatalf("LoadWith failed: %v", err)
	}
	if resolver.calls != 2 || res.Inserted != 1 {
		t.Errorf("calls = %d, result = %+v", resolver.calls, res)
	}

	boom := errors.New("lookup failed")
	_, err = NewFactLoader(db, SQLite, nil).LoadWith(t.Context(), &tg,
		table(t, teamGoalieCols, []any{int64(6), "20202021", int64(1)}), &stubResolver{err: boom})
	if !errors.Is(err, boom) || !errors.Is(err, ErrLoad) {
		t.Errorf("LoadWith error = %v, want wrapped %v", err, boom)
	}
}
