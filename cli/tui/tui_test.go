package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/justapithecus/crease/cli/reader"
)

func TestIsTUISupported(t *testing.T) {
	tests := []struct {
		viewType string
		want     bool
	}{
		{"status", true},
		{"tables", true},
		{"run", false},
		{"version", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.viewType, func(t *testing.T) {
			if got := IsTUISupported(tt.viewType); got != tt.want {
				t.Errorf("IsTUISupported(%q) = %v, want %v", tt.viewType, got, tt.want)
			}
		})
	}
}

func TestSupportedTUIViews(t *testing.T) {
	for _, v := range SupportedTUIViews() {
		if !IsTUISupported(v) {
			t.Errorf("SupportedTUIViews contains %q but IsTUISupported returns false", v)
		}
	}
}

func testStatus() *reader.StatusView {
	return &reader.StatusView{
		Season:  "20202021",
		Tables:  []string{"teams"},
		Summary: reader.StatusSummary{Total: 2, Complete: 1, Pending: 1},
		Tasks: []reader.TaskStatus{
			{Task: "FetchTeams(season=20202021)", State: "complete", Output: "raw/teams/season=20202021.json"},
			{Task: "CleanTeams(season=20202021)", State: "pending", Output: "clean/teams/season=20202021.msgpack"},
		},
	}
}

func TestStatusModel_View(t *testing.T) {
	m, err := NewModel(ViewStatus, testStatus())
	if err != nil {
		t.Fatalf("NewModel failed: %v", err)
	}

	view := m.View()
	for _, want := range []string{"Season 20202021", "Complete", "CleanTeams(season=20202021)", "Next:"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestTablesModel_View(t *testing.T) {
	views := []reader.TableView{
		{Order: 1, Name: "teams", Kind: "dimension", IDCols: []string{"team_id"}},
		{Order: 2, Name: "team_goalies", Kind: "fact", IDCols: []string{"team_id", "season"}, References: []string{"goalies", "teams"}},
	}
	m, err := NewModel(ViewTables, views)
	if err != nil {
		t.Fatalf("NewModel failed: %v", err)
	}
	view := m.View()
	if !strings.Contains(view, "Load order") || !strings.Contains(view, "team_goalies") {
		t.Errorf("view:\n%s", view)
	}
}

func TestModel_QuitKey(t *testing.T) {
	m, err := NewModel(ViewStatus, testStatus())
	if err != nil {
		t.Fatalf("NewModel failed: %v", err)
	}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if next.View() != "" {
		t.Error("view should be empty after quitting")
	}
}

func TestNewModel_Errors(t *testing.T) {
	if _, err := NewModel("version", nil); err == nil {
		t.Error("expected error for unsupported view")
	}
	if _, err := NewModel(ViewStatus, []reader.TableView{}); err == nil {
		t.Error("expected error for mismatched payload")
	}
	if _, err := NewModel(ViewTables, testStatus()); err == nil {
		t.Error("expected error for mismatched payload")
	}
}
