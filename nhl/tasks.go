package nhl

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/justapithecus/crease/artifact"
	"github.com/justapithecus/crease/dag"
	"github.com/justapithecus/crease/types"
)

// Pipeline builds the extraction and cleaning tasks for one season.
type Pipeline struct {
	client *Client
	season string
}

// NewPipeline creates a Pipeline for season.
func NewPipeline(client *Client, season string) *Pipeline {
	return &Pipeline{client: client, season: season}
}

// Season returns the pipeline's season.
func (p *Pipeline) Season() string {
	return p.season
}

func (p *Pipeline) params() dag.Params {
	return dag.Params{"season": p.season}
}

func (p *Pipeline) rawName(entity string) string {
	return fmt.Sprintf("raw/%s/season=%s.json", entity, p.season)
}

// CleanArtifact returns the cleaned table artifact name for table.
func (p *Pipeline) CleanArtifact(table string) string {
	return fmt.Sprintf("clean/%s/season=%s.msgpack", table, p.season)
}

// FetchTeams lists the season's teams.
func (p *Pipeline) FetchTeams() dag.Task {
	return dag.NewTask("FetchTeams", p.params(), p.rawName("teams"),
		func(ctx context.Context, _ artifact.Reader, w io.Writer) error {
			teams, err := p.client.Teams(ctx, p.season)
			if err != nil {
				return err
			}
			return artifact.EncodeJSON(w, teams)
		})
}

// FetchRosters fetches every team's roster.
func (p *Pipeline) FetchRosters() dag.Task {
	teamsTask := p.FetchTeams()
	return dag.NewTask("FetchRosters", p.params(), p.rawName("rosters"),
		func(ctx context.Context, in artifact.Reader, w io.Writer) error {
			var teams []Team
			if err := artifact.ReadJSON(ctx, in, teamsTask.Output(), &teams); err != nil {
				return err
			}
			rosters := make([]TeamRoster, 0, len(teams))
			for _, t := range teams {
				players, err := p.client.Roster(ctx, t.ID, p.season)
				if err != nil {
					return err
				}
				rosters = append(rosters, TeamRoster{TeamID: t.ID, Players: players})
			}
			return artifact.EncodeJSON(w, rosters)
		}, teamsTask)
}

// FetchGameLogs fetches the game log of every rostered goalie.
func (p *Pipeline) FetchGameLogs() dag.Task {
	rostersTask := p.FetchRosters()
	return dag.NewTask("FetchGameLogs", p.params(), p.rawName("gamelogs"),
		func(ctx context.Context, in artifact.Reader, w io.Writer) error {
			var rosters []TeamRoster
			if err := artifact.ReadJSON(ctx, in, rostersTask.Output(), &rosters); err != nil {
				return err
			}
			var logs []GoalieGameLog
			seen := make(map[int64]bool)
			for _, r := range rosters {
				for _, player := range r.Players {
					id := player.Person.ID
					if player.Position.Code != PositionGoalie || seen[id] {
						continue
					}
					seen[id] = true
					splits, err := p.client.GameLog(ctx, id, p.season)
					if err != nil {
						return err
					}
					logs = append(logs, GoalieGameLog{GoalieID: id, TeamID: r.TeamID, Splits: splits})
				}
			}
			return artifact.EncodeJSON(w, logs)
		}, rostersTask)
}

// CleanTeams projects teams to (team_id, team_name, team_short_name).
func (p *Pipeline) CleanTeams() dag.Task {
	src := p.FetchTeams()
	return dag.NewTask("CleanTeams", p.params(), p.CleanArtifact(TableTeams),
		func(ctx context.Context, in artifact.Reader, w io.Writer) error {
			var teams []Team
			if err := artifact.ReadJSON(ctx, in, src.Output(), &teams); err != nil {
				return err
			}
			out := types.NewTable(teamsSpec().Columns...)
			for _, t := range teams {
				if err := out.Append(t.ID, t.TeamName, t.Abbreviation); err != nil {
					return err
				}
			}
			return artifact.EncodeTable(w, out)
		}, src)
}

// CleanGoalies projects rostered goalies to (goalie_id, goalie_name).
func (p *Pipeline) CleanGoalies() dag.Task {
	src := p.FetchRosters()
	return dag.NewTask("CleanGoalies", p.params(), p.CleanArtifact(TableGoalies),
		func(ctx context.Context, in artifact.Reader, w io.Writer) error {
			var rosters []TeamRoster
			if err := artifact.ReadJSON(ctx, in, src.Output(), &rosters); err != nil {
				return err
			}
			out := types.NewTable(goaliesSpec().Columns...)
			seen := make(map[int64]bool)
			for _, r := range rosters {
				for _, player := range r.Players {
					if player.Position.Code != PositionGoalie || seen[player.Person.ID] {
						continue
					}
					seen[player.Person.ID] = true
					if err := out.Append(player.Person.ID, player.Person.FullName); err != nil {
						return err
					}
				}
			}
			return artifact.EncodeTable(w, out)
		}, src)
}

// CleanTeamGoalies projects rosters to (team_id, season, goalie_id).
func (p *Pipeline) CleanTeamGoalies() dag.Task {
	src := p.FetchRosters()
	return dag.NewTask("CleanTeamGoalies", p.params(), p.CleanArtifact(TableTeamGoalies),
		func(ctx context.Context, in artifact.Reader, w io.Writer) error {
			var rosters []TeamRoster
			if err := artifact.ReadJSON(ctx, in, src.Output(), &rosters); err != nil {
				return err
			}
			out := types.NewTable(teamGoaliesSpec().Columns...)
			for _, r := range rosters {
				for _, player := range r.Players {
					if player.Position.Code != PositionGoalie {
						continue
					}
					if err := out.Append(r.TeamID, p.season, player.Person.ID); err != nil {
						return err
					}
				}
			}
			return artifact.EncodeTable(w, out)
		}, src)
}

// CleanGameLogs flattens goalie game logs into gamelog rows.
func (p *Pipeline) CleanGameLogs() dag.Task {
	src := p.FetchGameLogs()
	return dag.NewTask("CleanGameLogs", p.params(), p.CleanArtifact(TableGameLog),
		func(ctx context.Context, in artifact.Reader, w io.Writer) error {
			var logs []GoalieGameLog
			if err := artifact.ReadJSON(ctx, in, src.Output(), &logs); err != nil {
				return err
			}
			out := types.NewTable(gameLogSpec().Columns...)
			for _, l := range logs {
				for _, s := range l.Splits {
					row, err := gameLogRow(l.GoalieID, s)
					if err != nil {
						return fmt.Errorf("goalie %d game %d: %w", l.GoalieID, s.Game.GamePk, err)
					}
					if err := out.Append(row...); err != nil {
						return err
					}
				}
			}
			return artifact.EncodeTable(w, out)
		}, src)
}

// gameLogRow returns values in gameLogSpec column order.
func gameLogRow(goalieID int64, s GameLogSplit) ([]any, error) {
	toi, err := ParseTimeOnIce(s.Stat.TimeOnIce)
	if err != nil {
		return nil, err
	}
	var overtimes int64
	if s.IsOT {
		overtimes = 1
	}
	return []any{
		s.Game.GamePk,
		s.Season,
		goalieID,
		s.Date,
		toi,
		s.Stat.GoalsAgainst,
		s.Team.ID,
		s.Opponent.ID,
		s.Stat.ShotsAgainst,
		s.Stat.Saves,
		s.Stat.EvenShots,
		s.Stat.EvenSaves,
		s.Stat.PowerPlayShots,
		s.Stat.PowerPlaySaves,
		s.Stat.ShortHandedShots,
		s.Stat.ShortHandedSaves,
		s.IsHome,
		s.IsOT,
		overtimes,
		s.IsWin,
	}, nil
}

// ParseTimeOnIce converts "MM:SS" to seconds. Minutes may exceed 59.
func ParseTimeOnIce(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	mins, secs, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("invalid time on ice %q", s)
	}
	m, err := strconv.ParseInt(mins, 10, 64)
	if err != nil || m < 0 {
		return 0, fmt.Errorf("invalid time on ice %q", s)
	}
	sec, err := strconv.ParseInt(secs, 10, 64)
	if err != nil || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("invalid time on ice %q", s)
	}
	return m*60 + sec, nil
}
