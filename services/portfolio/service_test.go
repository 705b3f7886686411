package portfolio

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
	"traderdeck/lib/scrapers/carnivore"
	"traderdeck/lib/telemetry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const testLoginForm = `
	<html><body>
		<form action="/login" method="post">
			<input type="email" name="email">
			<input type="password" name="password">
			<button type="submit">Sign In</button>
		</form>
	</body></html>`

const sectorTable = `
	<html><body><table>
		<thead><tr><th>Ticker</th><th>Company</th><th>Weight</th></tr></thead>
		<tbody>
			<tr><td>XLE</td><td>Energy Select</td><td>12.5%</td></tr>
			<tr><td>XLF</td><td>Financial Select</td><td>9.8%</td></tr>
		</tbody>
	</table></body></html>`

const longTermTable = `
	<html><body><table>
		<thead><tr><th>Ticker</th><th>Company</th><th>Avg Cost</th></tr></thead>
		<tbody><tr><td>AAPL</td><td>Apple</td><td>$178.50</td></tr></tbody>
	</table></body></html>`

// a loaded SPA shell with nothing extractable in it
const emptyShell = `<html><body><p>loading positions...</p></body></html>`

type portalState struct {
	loggedIn bool
}

// newPortal fakes the target site: a cookie-granting login plus a
// handler per book page.
func newPortal(t *testing.T, pages map[string]string) (*httptest.Server, *portalState) {
	state := &portalState{}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testLoginForm)
	})
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		state.loggedIn = true
		http.SetCookie(w, &http.Cookie{Name: "session_token", Value: "abc", Path: "/"})
		fmt.Fprint(w, testLoginForm)
	})
	for path, markup := range pages {
		markup := markup
		mux.HandleFunc("GET "+path, func(w http.ResponseWriter, r *http.Request) {
			if !state.loggedIn {
				http.Redirect(w, r, "/login", http.StatusFound)
				return
			}
			fmt.Fprint(w, markup)
		})
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, state
}

func testService(t *testing.T, server *httptest.Server, storePath string) Service {
	cleanup := telemetry.SetupForTesting(t, "test:services/portfolio")
	t.Cleanup(cleanup)

	client, err := carnivore.NewClient(context.Background(), carnivore.ClientOptions{
		BaseUrl:      server.URL,
		PollInterval: 5 * time.Millisecond,
		LoginWindow:  50 * time.Millisecond,
	})
	require.NoError(t, err)

	return NewService(ServiceOptions{
		Client:   client,
		LoginUrl: server.URL + "/login",
		Store:    Store{Path: storePath},
	})
}

func testTargets(server *httptest.Server) []PageTarget {
	return []PageTarget{
		{Book: BookSectorRotation, URL: server.URL + "/sector-heaters"},
		{
			Book:         BookLongTerm,
			URL:          server.URL + "/longterm",
			FallbackURLs: []string{server.URL + "/long-term"},
		},
	}
}

func TestRunHappyPath(t *testing.T) {
	server, _ := newPortal(t, map[string]string{
		"/sector-heaters": sectorTable,
		"/longterm":       longTermTable,
	})
	storePath := filepath.Join(t.TempDir(), "portfolios.json")
	service := testService(t, server, storePath)

	result, err := service.Run(context.Background(), carnivore.Credential{
		Identity: "trader@example.com",
		Secret:   "hunter2",
	}, testTargets(server))
	require.NoError(t, err)
	require.Equal(t, StatusOK, result.Status)

	require.Len(t, result.Snapshot.SectorRotation, 2)
	require.Equal(t, "XLE", result.Snapshot.SectorRotation[0].Ticker)
	require.Len(t, result.Snapshot.LongTerm, 1)
	require.Equal(t, "AAPL", result.Snapshot.LongTerm[0].Ticker)

	// persisted artifact matches what the run returned
	diff := cmp.Diff(result.Snapshot, Store{Path: storePath}.Load())
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestRunFallbackUrl(t *testing.T) {
	server, _ := newPortal(t, map[string]string{
		"/sector-heaters": sectorTable,
		"/longterm":       emptyShell,
		"/long-term":      longTermTable,
	})
	storePath := filepath.Join(t.TempDir(), "portfolios.json")
	service := testService(t, server, storePath)

	result, err := service.Run(context.Background(), carnivore.Credential{
		Identity: "trader@example.com",
		Secret:   "hunter2",
	}, testTargets(server))
	require.NoError(t, err)
	require.Len(t, result.Snapshot.LongTerm, 1)
	require.Equal(t, "AAPL", result.Snapshot.LongTerm[0].Ticker)
}

func TestRunEmptyBookFallsBackToPrior(t *testing.T) {
	server, _ := newPortal(t, map[string]string{
		"/sector-heaters": sectorTable,
		"/longterm":       emptyShell,
		"/long-term":      emptyShell,
	})
	storePath := filepath.Join(t.TempDir(), "portfolios.json")

	prior := Snapshot{
		LastUpdated: "2026-08-23 14:30 UTC",
		Source:      "carnivoretradedesk.com",
		LongTerm:    positions("MSFT"),
	}
	require.NoError(t, Store{Path: storePath}.Save(prior))

	service := testService(t, server, storePath)
	result, err := service.Run(context.Background(), carnivore.Credential{
		Identity: "trader@example.com",
		Secret:   "hunter2",
	}, testTargets(server))
	require.NoError(t, err)
	require.Equal(t, StatusOK, result.Status)

	require.Len(t, result.Snapshot.SectorRotation, 2)
	require.Equal(t, prior.LongTerm, result.Snapshot.LongTerm)
}

func TestRunLoginFailureLeavesPriorUntouched(t *testing.T) {
	// a login page the scraper cannot fill in: no identity input
	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><form><input type="password" name="password"></form></body></html>`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	storePath := filepath.Join(t.TempDir(), "portfolios.json")
	prior := Snapshot{
		LastUpdated:    "2026-08-23 14:30 UTC",
		Source:         "carnivoretradedesk.com",
		SectorRotation: positions("XLE"),
	}
	require.NoError(t, Store{Path: storePath}.Save(prior))
	before, err := os.ReadFile(storePath)
	require.NoError(t, err)

	service := testService(t, server, storePath)
	result, err := service.Run(context.Background(), carnivore.Credential{
		Identity: "trader@example.com",
		Secret:   "hunter2",
	}, testTargets(server))
	require.ErrorIs(t, err, carnivore.ErrLoginFieldNotFound)
	require.Equal(t, StatusLoginFailed, result.Status)

	diff := cmp.Diff(prior, result.Snapshot)
	if diff != "" {
		t.Fatal(diff)
	}

	after, err := os.ReadFile(storePath)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

// newExpiringPortal grants the login cookie but bounces every book page
// back to the login surface, the way a dropped server-side session does.
func newExpiringPortal(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testLoginForm)
	})
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session_token", Value: "abc", Path: "/"})
		fmt.Fprint(w, testLoginForm)
	})
	for _, path := range []string{"/sector-heaters", "/longterm", "/long-term"} {
		mux.HandleFunc("GET "+path, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/login", http.StatusFound)
		})
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// the session dying between pages is a per-page failure: every book
// falls back to its prior value and the run still succeeds
func TestRunSessionLostFallsBackToPrior(t *testing.T) {
	server := newExpiringPortal(t)
	storePath := filepath.Join(t.TempDir(), "portfolios.json")

	prior := Snapshot{
		LastUpdated:    "2026-08-23 14:30 UTC",
		Source:         "carnivoretradedesk.com",
		SectorRotation: positions("XLE"),
		LongTerm:       positions("MSFT"),
	}
	require.NoError(t, Store{Path: storePath}.Save(prior))

	service := testService(t, server, storePath)
	result, err := service.Run(context.Background(), carnivore.Credential{
		Identity: "trader@example.com",
		Secret:   "hunter2",
	}, testTargets(server))
	require.NoError(t, err)
	require.Equal(t, StatusOK, result.Status)

	diff := cmp.Diff(prior.SectorRotation, result.Snapshot.SectorRotation)
	if diff != "" {
		t.Fatal(diff)
	}
	diff = cmp.Diff(prior.LongTerm, result.Snapshot.LongTerm)
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestRunSessionLostNoPriorIsTotalDataLoss(t *testing.T) {
	server := newExpiringPortal(t)
	storePath := filepath.Join(t.TempDir(), "portfolios.json")
	service := testService(t, server, storePath)

	result, err := service.Run(context.Background(), carnivore.Credential{
		Identity: "trader@example.com",
		Secret:   "hunter2",
	}, testTargets(server))
	require.ErrorIs(t, err, ErrTotalDataLoss)
	require.Equal(t, StatusTotalDataLoss, result.Status)
	require.True(t, result.Snapshot.Empty())
}

func TestRunTotalDataLoss(t *testing.T) {
	server, _ := newPortal(t, map[string]string{
		"/sector-heaters": emptyShell,
		"/longterm":       emptyShell,
		"/long-term":      emptyShell,
	})
	storePath := filepath.Join(t.TempDir(), "portfolios.json")
	service := testService(t, server, storePath)

	result, err := service.Run(context.Background(), carnivore.Credential{
		Identity: "trader@example.com",
		Secret:   "hunter2",
	}, testTargets(server))
	require.ErrorIs(t, err, ErrTotalDataLoss)
	require.Equal(t, StatusTotalDataLoss, result.Status)
	require.True(t, result.Snapshot.Empty())

	// the file is still written best-effort
	written := Store{Path: storePath}.Load()
	require.True(t, written.Empty())
	require.NotEmpty(t, written.LastUpdated)
}
