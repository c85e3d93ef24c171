// Package reader provides the read-side data access layer for the crease CLI.
//
// Read-only commands (status, tables) build their payloads here. Nothing
// in this package executes a task or touches the warehouse.
package reader

// StatusView is the payload of the status command.
type StatusView struct {
	Season  string        `json:"season"`
	Tables  []string      `json:"tables"`
	Summary StatusSummary `json:"summary"`
	Tasks   []TaskStatus  `json:"tasks"`
}

// StatusSummary counts tasks by state.
type StatusSummary struct {
	Total       int `json:"total"`
	Complete    int `json:"complete"`
	Pending     int `json:"pending"`
	NotRequired int `json:"not_required"`
}

// TaskStatus is one task of the plan, in execution order.
type TaskStatus struct {
	Task     string   `json:"task"`
	State    string   `json:"state"`
	Output   string   `json:"output"`
	Requires []string `json:"requires"`
}

// TableView describes one table in load order.
type TableView struct {
	Order      int      `json:"order"`
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	Conflict   string   `json:"conflict"`
	IDCols     []string `json:"id_cols"`
	DateCols   []string `json:"date_cols"`
	References []string `json:"references"`
	Artifact   string   `json:"artifact"`
}

// TableHeader implements render.Tabular.
func (v *StatusView) TableHeader() []string {
	return []string{"TASK", "STATE", "OUTPUT"}
}

// TableRows implements render.Tabular.
func (v *StatusView) TableRows() [][]string {
	rows := make([][]string, len(v.Tasks))
	for i, t := range v.Tasks {
		rows[i] = []string{t.Task, t.State, t.Output}
	}
	return rows
}
