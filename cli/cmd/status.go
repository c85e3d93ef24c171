package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/crease/cli/reader"
	"github.com/justapithecus/crease/cli/render"
	"github.com/justapithecus/crease/cli/tui"
	"github.com/justapithecus/crease/nhl"
)

// StatusCommand returns the status command.
// It plans the task graph against the store without running anything.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show which tasks of a season are complete",
		Flags:  append(pipelineFlags(), ReadOnlyFlags()...),
		Action: statusAction,
	}
}

func statusAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	s, err := loadSettings(c)
	if err != nil {
		return configExit(err)
	}
	store, err := openStore(c.Context, s.store)
	if err != nil {
		return configExit(err)
	}

	view, err := reader.New(store, nhl.NewPipeline(nil, s.season)).Status(c.Context, s.tables...)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewStatus, view)
	}
	return r.Render(view)
}
