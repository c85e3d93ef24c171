package nhl

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

const season = "20202021"

// fakeAPI serves a two-team league with one goalie per team.
type fakeAPI struct {
	mu       sync.Mutex
	requests map[string]int
	// failures maps a path to status codes returned before succeeding.
	failures map[string][]int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{requests: make(map[string]int), failures: make(map[string][]int)}
}

func (f *fakeAPI) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[path]
}

func (f *fakeAPI) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.requests {
		n += c
	}
	return n
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests[r.URL.Path]++
	if codes := f.failures[r.URL.Path]; len(codes) > 0 {
		f.failures[r.URL.Path] = codes[1:]
		f.mu.Unlock()
		w.WriteHeader(codes[0])
		return
	}
	f.mu.Unlock()

	if r.URL.Query().Get("season") != season {
		http.Error(w, "unexpected season", http.StatusBadRequest)
		return
	}

	var body string
	switch {
	case r.URL.Path == "/api/v1/teams":
		body = `{"teams":[
			{"id":20,"name":"Calgary Flames","teamName":"Flames","abbreviation":"CGY"},
			{"id":6,"name":"Boston Bruins","teamName":"Bruins","abbreviation":"BOS"}]}`
	case r.URL.Path == "/api/v1/teams/20":
		body = `{"teams":[{"id":20,"roster":{"roster":[
			{"person":{"id":8474593,"fullName":"Jacob Markstrom"},"position":{"code":"G"}},
			{"person":{"id":8478233,"fullName":"Matthew Tkachuk"},"position":{"code":"L"}}]}}]}`
	case r.URL.Path == "/api/v1/teams/6":
		body = `{"teams":[{"id":6,"roster":{"roster":[
			{"person":{"id":8476999,"fullName":"Linus Ullmark"},"position":{"code":"G"}}]}}]}`
	case r.URL.Path == "/api/v1/people/8474593/stats":
		body = `{"stats":[{"splits":[
			{"season":"20202021","date":"2021-01-13","isHome":true,"isWin":true,"isOT":false,
			 "team":{"id":20},"opponent":{"id":6},"game":{"gamePk":2020020006},
			 "stat":{"timeOnIce":"60:00","goalsAgainst":2,"shotsAgainst":30,"saves":28,
			  "evenShots":25,"evenSaves":24,"powerPlayShots":3,"powerPlaySaves":2,
			  "shortHandedShots":2,"shortHandedSaves":2}}]}]}`
	case r.URL.Path == "/api/v1/people/8476999/stats":
		body = `{"stats":[{"splits":[
			{"season":"20202021","date":"2021-01-13","isHome":false,"isWin":false,"isOT":true,
			 "team":{"id":6},"opponent":{"id":20},"game":{"gamePk":2020020006},
			 "stat":{"timeOnIce":"63:12","goalsAgainst":3,"shotsAgainst":33,"saves":30,
			  "evenShots":28,"evenSaves":26,"powerPlayShots":4,"powerPlaySaves":3,
			  "shortHandedShots":1,"shortHandedSaves":1}}]}]}`
	case strings.HasPrefix(r.URL.Path, "/api/v1/people/"):
		body = `{"stats":[{"splits":[]}]}`
	default:
		http.NotFound(w, r)
		return
	}

	if !json.Valid([]byte(body)) {
		http.Error(w, "bad fixture", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func newTestClient(t *testing.T, api http.Handler, retries int) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	c, err := NewClient(ClientConfig{
		BaseURL: srv.URL,
		Timeout: 5 * time.Second,
		Retries: retries,
		Backoff: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}
