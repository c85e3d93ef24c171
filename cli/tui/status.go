package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/crease/cli/reader"
)

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "esc", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// chromeHeight is the rows taken by the title, stat boxes and help line.
const chromeHeight = 12

// listModel shows a header above a scrollable table.
type listModel struct {
	header   string
	list     table.Model
	quitting bool
}

func newListModel(header string, columns []table.Column, rows []table.Row) listModel {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Foreground(primaryColor).Bold(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("#FFFFFF")).Background(primaryColor)

	return listModel{
		header: header,
		list: table.New(
			table.WithColumns(columns),
			table.WithRows(rows),
			table.WithFocused(true),
			table.WithHeight(min(len(rows)+1, 20)),
			table.WithStyles(styles),
		),
	}
}

// Init implements tea.Model.
func (m listModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m listModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if h := msg.Height - chromeHeight; h > 2 {
			m.list.SetHeight(min(h, len(m.list.Rows())+1))
		}
		return m, nil
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m listModel) View() string {
	if m.quitting {
		return ""
	}
	help := HelpStyle.Render("↑/↓ scroll • q quit")
	return m.header + "\n" + TableBoxStyle.Render(m.list.View()) + "\n" + help
}

func newStatusModel(data any) (tea.Model, error) {
	view, ok := data.(*reader.StatusView)
	if !ok {
		return nil, fmt.Errorf("status view: unexpected payload %T", data)
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Season %s: %s", view.Season, strings.Join(view.Tables, ", "))))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		statBox("Tasks", view.Summary.Total, highlightColor),
		statBox("Complete", view.Summary.Complete, successColor),
		statBox("Pending", view.Summary.Pending, warningColor),
		statBox("Not required", view.Summary.NotRequired, mutedColor),
	))
	b.WriteString("\n")
	b.WriteString(nextLine(view))

	columns := []table.Column{
		{Title: "Task", Width: 36},
		{Title: "State", Width: 14},
		{Title: "Output", Width: 44},
	}
	rows := make([]table.Row, len(view.Tasks))
	for i, t := range view.Tasks {
		rows[i] = table.Row{t.Task, t.State, t.Output}
	}
	return newListModel(b.String(), columns, rows), nil
}

func newTablesModel(data any) (tea.Model, error) {
	views, ok := data.([]reader.TableView)
	if !ok {
		return nil, fmt.Errorf("tables view: unexpected payload %T", data)
	}

	var dims, facts int
	for _, v := range views {
		if v.Kind == "dimension" {
			dims++
		} else {
			facts++
		}
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Load order"))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		statBox("Dimensions", dims, highlightColor),
		statBox("Facts", facts, primaryColor),
	))

	columns := []table.Column{
		{Title: "#", Width: 3},
		{Title: "Table", Width: 16},
		{Title: "Kind", Width: 10},
		{Title: "Identity", Width: 28},
		{Title: "References", Width: 20},
	}
	rows := make([]table.Row, len(views))
	for i, v := range views {
		rows[i] = table.Row{
			fmt.Sprint(v.Order),
			v.Name,
			v.Kind,
			strings.Join(v.IDCols, ", "),
			strings.Join(v.References, ", "),
		}
	}
	return newListModel(b.String(), columns, rows), nil
}

// nextLine names the first task a run would execute.
func nextLine(view *reader.StatusView) string {
	for _, t := range view.Tasks {
		if t.State == "pending" {
			return "Next: " + StateStyle(t.State).Render(t.Task)
		}
	}
	return StateStyle("complete").Render("Every requested table is ready to load")
}

func statBox(label string, value int, color lipgloss.Color) string {
	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)
	return StatBoxStyle.BorderForeground(color).Render(lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr))
}
