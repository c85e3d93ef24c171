package nhl

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/justapithecus/crease/dag"
	"github.com/justapithecus/crease/warehouse"
)

// Warehouse table names.
const (
	TableTeams       = "teams"
	TableGoalies     = "goalies"
	TableTeamGoalies = "team_goalies"
	TableGameLog     = "gamelog"
)

// ErrUnknownTable is returned by Targets for a table it does not define.
var ErrUnknownTable = errors.New("unknown table")

func teamsSpec() warehouse.TableSpec {
	return warehouse.TableSpec{
		Name:    TableTeams,
		Kind:    warehouse.Dimension,
		Columns: []string{"team_id", "team_name", "team_short_name"},
		IDCols:  []string{"team_id"},
		ColumnTypes: map[string]string{
			"team_id": "BIGINT",
		},
	}
}

func goaliesSpec() warehouse.TableSpec {
	return warehouse.TableSpec{
		Name:    TableGoalies,
		Kind:    warehouse.Dimension,
		Columns: []string{"goalie_id", "goalie_name"},
		IDCols:  []string{"goalie_id"},
		ColumnTypes: map[string]string{
			"goalie_id": "BIGINT",
		},
	}
}

func teamGoaliesSpec() warehouse.TableSpec {
	return warehouse.TableSpec{
		Name:    TableTeamGoalies,
		Kind:    warehouse.Fact,
		Columns: []string{"team_id", "season", "goalie_id"},
		IDCols:  []string{"team_id", "season"},
		MergeCols: map[string]warehouse.Reference{
			"team_id":   {Table: TableTeams, Column: "team_id"},
			"goalie_id": {Table: TableGoalies, Column: "goalie_id"},
		},
		ColumnTypes: map[string]string{
			"team_id":   "BIGINT",
			"goalie_id": "BIGINT",
		},
	}
}

func gameLogSpec() warehouse.TableSpec {
	colTypes := map[string]string{
		"season":           "TEXT",
		"game_date":        "DATE",
		"is_home_game":     "BOOLEAN",
		"is_overtime_game": "BOOLEAN",
		"is_won_game":      "BOOLEAN",
	}
	cols := []string{
		"game_id", "season", "goalie_id", "game_date",
		"time_on_ice_in_seconds", "goals_against", "goalie_team", "opponent",
		"shots_against", "saves",
		"even_shots", "even_saves",
		"power_play_shots", "power_play_saves",
		"short_handed_shots", "short_handed_saves",
		"is_home_game", "is_overtime_game", "overtimes", "is_won_game",
	}
	for _, c := range cols {
		if _, ok := colTypes[c]; !ok {
			colTypes[c] = "BIGINT"
		}
	}
	return warehouse.TableSpec{
		Name:     TableGameLog,
		Kind:     warehouse.Fact,
		Columns:  cols,
		IDCols:   []string{"game_id", "season", "goalie_id"},
		DateCols: []string{"game_date"},
		MergeCols: map[string]warehouse.Reference{
			"goalie_id":   {Table: TableGoalies, Column: "goalie_id"},
			"goalie_team": {Table: TableTeams, Column: "team_id"},
			"opponent":    {Table: TableTeams, Column: "team_id"},
		},
		ColumnTypes: colTypes,
	}
}

// TableSpecs returns every table in load order, with artifact names for
// the pipeline's season.
func (p *Pipeline) TableSpecs() []warehouse.TableSpec {
	specs := []warehouse.TableSpec{teamsSpec(), goaliesSpec(), teamGoaliesSpec(), gameLogSpec()}
	for i := range specs {
		specs[i].Artifact = p.CleanArtifact(specs[i].Name)
	}
	return specs
}

// TableNames returns the names of every table the pipeline defines.
func TableNames() []string {
	return []string{TableTeams, TableGoalies, TableTeamGoalies, TableGameLog}
}

func (p *Pipeline) cleanTask(table string) dag.Task {
	switch table {
	case TableTeams:
		return p.CleanTeams()
	case TableGoalies:
		return p.CleanGoalies()
	case TableTeamGoalies:
		return p.CleanTeamGoalies()
	default:
		return p.CleanGameLogs()
	}
}

// Targets resolves the requested tables (all when none are given) to the
// closure of tables they reference, ordered for loading, together with the
// cleaning tasks that produce them.
func (p *Pipeline) Targets(tables ...string) ([]dag.Task, []warehouse.TableSpec, error) {
	all := p.TableSpecs()
	byName := make(map[string]warehouse.TableSpec, len(all))
	for _, s := range all {
		byName[s.Name] = s
	}
	if len(tables) == 0 {
		tables = TableNames()
	}

	selected := make(map[string]bool)
	var visit func(name string) error
	visit = func(name string) error {
		spec, ok := byName[name]
		if !ok {
			return fmt.Errorf("%w %q (known: %s)", ErrUnknownTable, name, strings.Join(TableNames(), ", "))
		}
		if selected[name] {
			return nil
		}
		selected[name] = true
		for _, ref := range spec.References() {
			if err := visit(ref); err != nil {
				return err
			}
		}
		return nil
	}
	for _, t := range tables {
		if err := visit(t); err != nil {
			return nil, nil, err
		}
	}

	var specs []warehouse.TableSpec
	for _, s := range all {
		if selected[s.Name] {
			specs = append(specs, s)
		}
	}
	specs, err := warehouse.OrderSpecs(specs)
	if err != nil {
		return nil, nil, err
	}

	tasks := make([]dag.Task, 0, len(specs))
	for _, s := range specs {
		tasks = append(tasks, p.cleanTask(s.Name))
	}
	return tasks, specs, nil
}

// IsTable reports whether name is a table the pipeline defines.
func IsTable(name string) bool {
	return slices.Contains(TableNames(), name)
}
