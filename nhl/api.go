package nhl

import (
	"context"
	"fmt"
	"net/url"
)

// PositionGoalie is the roster position code for goalies.
const PositionGoalie = "G"

// Team is an entry of /api/v1/teams.
type Team struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	TeamName     string `json:"teamName"`
	Abbreviation string `json:"abbreviation"`
	Roster       *struct {
		Roster []RosterEntry `json:"roster"`
	} `json:"roster,omitempty"`
}

// RosterEntry is one player on a team roster.
type RosterEntry struct {
	Person struct {
		ID       int64  `json:"id"`
		FullName string `json:"fullName"`
	} `json:"person"`
	Position struct {
		Code string `json:"code"`
	} `json:"position"`
}

type teamsResponse struct {
	Teams []Team `json:"teams"`
}

// GameLogSplit is one game of a goalie's game log.
type GameLogSplit struct {
	Season string `json:"season"`
	Date   string `json:"date"`
	IsHome bool   `json:"isHome"`
	IsWin  bool   `json:"isWin"`
	IsOT   bool   `json:"isOT"`
	Team   struct {
		ID int64 `json:"id"`
	} `json:"team"`
	Opponent struct {
		ID int64 `json:"id"`
	} `json:"opponent"`
	Game struct {
		GamePk int64 `json:"gamePk"`
	} `json:"game"`
	Stat GoalieStat `json:"stat"`
}

// GoalieStat holds per-game goalie counters.
type GoalieStat struct {
	TimeOnIce        string `json:"timeOnIce"`
	GoalsAgainst     int64  `json:"goalsAgainst"`
	ShotsAgainst     int64  `json:"shotsAgainst"`
	Saves            int64  `json:"saves"`
	EvenShots        int64  `json:"evenShots"`
	EvenSaves        int64  `json:"evenSaves"`
	PowerPlayShots   int64  `json:"powerPlayShots"`
	PowerPlaySaves   int64  `json:"powerPlaySaves"`
	ShortHandedShots int64  `json:"shortHandedShots"`
	ShortHandedSaves int64  `json:"shortHandedSaves"`
}

type statsResponse struct {
	Stats []struct {
		Splits []GameLogSplit `json:"splits"`
	} `json:"stats"`
}

// TeamRoster is the raw roster artifact entry for one team.
type TeamRoster struct {
	TeamID  int64         `json:"team_id"`
	Players []RosterEntry `json:"players"`
}

// GoalieGameLog is the raw game log artifact entry for one goalie.
type GoalieGameLog struct {
	GoalieID int64          `json:"goalie_id"`
	TeamID   int64          `json:"team_id"`
	Splits   []GameLogSplit `json:"splits"`
}

// Teams lists the teams active in season.
func (c *Client) Teams(ctx context.Context, season string) ([]Team, error) {
	var resp teamsResponse
	if err := c.GetJSON(ctx, "/api/v1/teams", url.Values{"season": {season}}, &resp); err != nil {
		return nil, err
	}
	return resp.Teams, nil
}

// Roster returns the roster of team teamID in season.
func (c *Client) Roster(ctx context.Context, teamID int64, season string) ([]RosterEntry, error) {
	var resp teamsResponse
	path := fmt.Sprintf("/api/v1/teams/%d", teamID)
	q := url.Values{"expand": {"team.roster"}, "season": {season}}
	if err := c.GetJSON(ctx, path, q, &resp); err != nil {
		return nil, err
	}
	if len(resp.Teams) == 0 || resp.Teams[0].Roster == nil {
		return nil, nil
	}
	return resp.Teams[0].Roster.Roster, nil
}

// GameLog returns the per-game splits of player personID in season.
func (c *Client) GameLog(ctx context.Context, personID int64, season string) ([]GameLogSplit, error) {
	var resp statsResponse
	path := fmt.Sprintf("/api/v1/people/%d/stats", personID)
	q := url.Values{"stats": {"gameLog"}, "season": {season}}
	if err := c.GetJSON(ctx, path, q, &resp); err != nil {
		return nil, err
	}
	var splits []GameLogSplit
	for _, s := range resp.Stats {
		splits = append(splits, s.Splits...)
	}
	return splits, nil
}
