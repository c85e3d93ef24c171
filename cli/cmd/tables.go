package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/crease/cli/reader"
	"github.com/justapithecus/crease/cli/render"
	"github.com/justapithecus/crease/cli/tui"
	"github.com/justapithecus/crease/nhl"
)

// TablesCommand returns the tables command.
// It lists the warehouse tables in load order and never touches storage.
func TablesCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "table",
			Aliases: []string{"t"},
			Usage:   "Table to list, with the tables it references (repeatable, default all)",
		},
	}
	return &cli.Command{
		Name:   "tables",
		Usage:  "List warehouse tables in load order",
		Flags:  append(flags, ReadOnlyFlags()...),
		Action: tablesAction,
	}
}

func tablesAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	views, err := reader.New(nil, nhl.NewPipeline(nil, "")).Tables(c.StringSlice("table")...)
	if err != nil {
		return configExit(err)
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewTables, views)
	}
	return r.Render(views)
}
