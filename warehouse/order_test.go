package warehouse

import (
	"errors"
	"testing"
)

func specNames(specs []TableSpec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.Name
	}
	return out
}

func TestCheckOrder(t *testing.T) {
	tests := []struct {
		name    string
		specs   []TableSpec
		wantErr error
	}{
		{"dimensions first", []TableSpec{teamsSpec(), goaliesSpec(), teamGoaliesSpec()}, nil},
		{"fact before dimension", []TableSpec{teamsSpec(), teamGoaliesSpec(), goaliesSpec()}, ErrOrdering},
		{"reference outside set", []TableSpec{teamsSpec(), teamGoaliesSpec()}, ErrOrdering},
		{"duplicate table", []TableSpec{teamsSpec(), teamsSpec()}, ErrInvalidSpec},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckOrder(tt.specs)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("CheckOrder() = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CheckOrder() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckOrder_ReportsOffendingEdge(t *testing.T) {
	err := CheckOrder([]TableSpec{teamGoaliesSpec(), teamsSpec(), goaliesSpec()})

	var ordErr *OrderingError
	if !errors.As(err, &ordErr) {
		t.Fatalf("expected *OrderingError, got %v", err)
	}
	if ordErr.Table != "team_goalies" || ordErr.References != "goalies" {
		t.Errorf("edge = %s -> %s", ordErr.Table, ordErr.References)
	}
}

func TestOrderSpecs_StableTopologicalOrder(t *testing.T) {
	ordered, err := OrderSpecs([]TableSpec{teamGoaliesSpec(), teamsSpec(), goaliesSpec()})
	if err != nil {
		t.Fatalf("OrderSpecs failed: %v", err)
	}
	got := specNames(ordered)
	want := []string{"teams", "goalies", "team_goalies"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
	if err := CheckOrder(ordered); err != nil {
		t.Errorf("ordered specs fail CheckOrder: %v", err)
	}
}

func TestOrderSpecs_FactReferencingFact(t *testing.T) {
	summary := TableSpec{
		Name:      "goalie_summary",
		Kind:      Fact,
		Artifact:  "clean/goalie_summary",
		Columns:   []string{"team_id", "season"},
		IDCols:    []string{"team_id", "season"},
		MergeCols: map[string]Reference{"team_id": {Table: "team_goalies", Column: "team_id"}},
	}

	ordered, err := OrderSpecs([]TableSpec{summary, teamGoaliesSpec(), goaliesSpec(), teamsSpec()})
	if err != nil {
		t.Fatalf("OrderSpecs failed: %v", err)
	}
	got := specNames(ordered)
	want := []string{"goalies", "teams", "team_goalies", "goalie_summary"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestOrderSpecs_Cycle(t *testing.T) {
	a := TableSpec{
		Name: "a", Kind: Fact, Artifact: "clean/a",
		Columns: []string{"id", "b_id"}, IDCols: []string{"id"},
		MergeCols: map[string]Reference{"b_id": {Table: "b", Column: "id"}},
	}
	b := TableSpec{
		Name: "b", Kind: Fact, Artifact: "clean/b",
		Columns: []string{"id", "a_id"}, IDCols: []string{"id"},
		MergeCols: map[string]Reference{"a_id": {Table: "a", Column: "id"}},
	}

	if _, err := OrderSpecs([]TableSpec{a, b}); !errors.Is(err, ErrOrdering) {
		t.Fatalf("OrderSpecs error = %v, want ErrOrdering", err)
	}
}

func TestOrderSpecs_UnknownReference(t *testing.T) {
	if _, err := OrderSpecs([]TableSpec{teamGoaliesSpec()}); !errors.Is(err, ErrOrdering) {
		t.Fatalf("OrderSpecs error = %v, want ErrOrdering", err)
	}
}
