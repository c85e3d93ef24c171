package nhl

import (
	"database/sql"
	"errors"
	"net/http"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/crease/artifact"
	"github.com/justapithecus/crease/dag"
	"github.com/justapithecus/crease/warehouse"
)

func specNames(specs []warehouse.TableSpec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.Name
	}
	return out
}

func TestTableSpecs_Valid(t *testing.T) {
	p := NewPipeline(nil, season)
	specs := p.TableSpecs()
	if err := warehouse.CheckOrder(specs); err != nil {
		t.Fatalf("CheckOrder failed: %v", err)
	}
	for _, s := range specs {
		if s.Artifact != p.CleanArtifact(s.Name) {
			t.Errorf("%s artifact = %q", s.Name, s.Artifact)
		}
	}
}

func TestTargets_Closure(t *testing.T) {
	p := NewPipeline(nil, season)

	tests := []struct {
		tables []string
		want   []string
	}{
		{nil, []string{"teams", "goalies", "team_goalies", "gamelog"}},
		{[]string{"teams"}, []string{"teams"}},
		{[]string{"gamelog"}, []string{"teams", "goalies", "gamelog"}},
		{[]string{"team_goalies", "goalies"}, []string{"teams", "goalies", "team_goalies"}},
	}

	for _, tt := range tests {
		tasks, specs, err := p.Targets(tt.tables...)
		if err != nil {
			t.Fatalf("Targets(%v) failed: %v", tt.tables, err)
		}
		if got := specNames(specs); !slices.Equal(got, tt.want) {
			t.Errorf("Targets(%v) specs = %v, want %v", tt.tables, got, tt.want)
		}
		if len(tasks) != len(specs) {
			t.Errorf("Targets(%v) returned %d tasks for %d specs", tt.tables, len(tasks), len(specs))
		}
		for i := range tasks {
			if tasks[i].Output() != specs[i].Artifact {
				t.Errorf("task %s output %q does not match spec artifact %q",
					tasks[i].ID(), tasks[i].Output(), specs[i].Artifact)
			}
		}
	}

	if _, _, err := p.Targets("skaters"); !errors.Is(err, ErrUnknownTable) {
		t.Errorf("Targets(skaters) error = %v, want ErrUnknownTable", err)
	}
}

func TestPipeline_CleanedTables(t *testing.T) {
	api := newFakeAPI()
	p := NewPipeline(newTestClient(t, api, 0), season)
	store := artifact.NewObjectStore(lode.NewMemory())

	tasks, _, err := p.Targets()
	if err != nil {
		t.Fatalf("Targets failed: %v", err)
	}
	report, err := dag.NewScheduler(store, nil, nil).Run(t.Context(), tasks...)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(report.Executed) != 7 {
		t.Errorf("executed %d tasks, want 7", len(report.Executed))
	}
	if n := api.count("/api/v1/teams"); n != 1 {
		t.Errorf("teams fetched %d times, want 1", n)
	}

	teams, err := artifact.ReadTable(t.Context(), store, p.CleanArtifact(TableTeams))
	if err != nil {
		t.Fatalf("ReadTable failed: %v", err)
	}
	if teams.Len() != 2 || teams.Rows[0][0] != int64(20) || teams.Rows[0][1] != "Flames" || teams.Rows[0][2] != "CGY" {
		t.Errorf("teams = %+v", teams.Rows)
	}

	goalies, _ := artifact.ReadTable(t.Context(), store, p.CleanArtifact(TableGoalies))
	if goalies.Len() != 2 {
		t.Errorf("goalies = %+v, want skater filtered out", goalies.Rows)
	}

	logs, _ := artifact.ReadTable(t.Context(), store, p.CleanArtifact(TableGameLog))
	if logs.Len() != 2 {
		t.Fatalf("gamelog rows = %d, want 2", logs.Len())
	}
	row := logs.Rows[1]
	col := func(name string) any { return row[logs.Index(name)] }
	if col("time_on_ice_in_seconds") != int64(3792) || col("overtimes") != int64(1) ||
		col("is_overtime_game") != true || col("is_home_game") != false || col("goalie_team") != int64(6) {
		t.Errorf("gamelog row = %v", row)
	}
}

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, _, err := warehouse.Open(t.Context(), warehouse.Config{
		Driver:       "sqlite3",
		URL:          filepath.Join(t.TempDir(), "nhl.db"),
		PingTimeout:  time.Second,
		MaxOpenConns: 1,
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPipeline_EndToEndIsIdempotent(t *testing.T) {
	api := newFakeAPI()
	p := NewPipeline(newTestClient(t, api, 0), season)
	store, err := artifact.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	db := openSQLite(t)

	tasks, specs, err := p.Targets()
	if err != nil {
		t.Fatalf("Targets failed: %v", err)
	}
	if err := warehouse.CreateSchema(t.Context(), db, specs); err != nil {
		t.Fatalf("CreateSchema failed: %v", err)
	}

	run := func() []warehouse.LoadResult {
		t.Helper()
		if _, err := dag.NewScheduler(store, nil, nil).Run(t.Context(), tasks...); err != nil {
			t.Fatalf("scheduler failed: %v", err)
		}
		results, err := warehouse.NewCoordinator(db, warehouse.SQLite, store, nil, nil).Run(t.Context(), specs)
		if err != nil {
			t.Fatalf("coordinator failed: %v", err)
		}
		return results
	}

	run()
	requests := api.total()
	results := run()

	if api.total() != requests {
		t.Errorf("second run made %d extra requests", api.total()-requests)
	}
	for _, r := range results {
		if r.Inserted != 0 {
			t.Errorf("second run inserted %d rows into %s", r.Inserted, r.Table)
		}
	}

	want := map[string]int{"teams": 2, "goalies": 2, "team_goalies": 2, "gamelog": 2}
	for table, n := range want {
		var got int
		if err := db.QueryRowContext(t.Context(), "SELECT COUNT(*) FROM "+table).Scan(&got); err != nil {
			t.Fatalf("count %s failed: %v", table, err)
		}
		if got != n {
			t.Errorf("%s has %d rows, want %d", table, got, n)
		}
	}
}

func TestPipeline_ExtractionFailureLeavesNoArtifact(t *testing.T) {
	api := newFakeAPI()
	api.failures["/api/v1/people/8476999/stats"] = []int{http.StatusInternalServerError}
	p := NewPipeline(newTestClient(t, api, 0), season)
	store := artifact.NewObjectStore(lode.NewMemory())

	_, err := dag.NewScheduler(store, nil, nil).Run(t.Context(), p.CleanGameLogs())
	if !errors.Is(err, ErrExtraction) {
		t.Fatalf("Run error = %v, want ErrExtraction", err)
	}
	var taskErr *dag.TaskError
	if !errors.As(err, &taskErr) || taskErr.Task.Name != "FetchGameLogs" {
		t.Errorf("failed task = %v", err)
	}
	if ok, _ := store.Exists(t.Context(), p.FetchGameLogs().Output()); ok {
		t.Error("partial game log artifact published")
	}
	if ok, _ := store.Exists(t.Context(), p.FetchRosters().Output()); !ok {
		t.Error("upstream rosters artifact should be kept for the retry")
	}
}
