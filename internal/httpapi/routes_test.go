package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/serpens2/weather-bot/internal/scheduler"
)

type fakeStore struct {
	pingErr error
	users   int
}

func (f fakeStore) Ping(context.Context) error              { return f.pingErr }
func (f fakeStore) CountUsers(context.Context) (int, error) { return f.users, nil }

type fakeJobs []scheduler.Job

func (f fakeJobs) Len() int              { return len(f) }
func (f fakeJobs) Jobs() []scheduler.Job { return f }

type fakeSessions int

func (f fakeSessions) Len() int { return int(f) }

func newTestDeps(st fakeStore) Deps {
	return Deps{
		Store:    st,
		Jobs:     fakeJobs{{ChatID: "1", Hour: 8}, {ChatID: "2", Hour: 21, Minute: 30}},
		Sessions: fakeSessions(3),
		Log:      zap.NewNop(),
	}
}

func TestHealthz(t *testing.T) {
	app := New(newTestDeps(fakeStore{}))
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
}

func TestReadyz(t *testing.T) {
	app := New(newTestDeps(fakeStore{}))
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}

	app = New(newTestDeps(fakeStore{pingErr: errors.New("down")}))
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, resp.StatusCode)
	}
}

func TestStats(t *testing.T) {
	app := New(newTestDeps(fakeStore{users: 5}))
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Users    int `json:"users"`
		Jobs     int `json:"jobs"`
		Sessions int `json:"sessions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Users != 5 || body.Jobs != 2 || body.Sessions != 3 {
		t.Fatalf("unexpected stats %+v", body)
	}
}

func TestJobs(t *testing.T) {
	app := New(newTestDeps(fakeStore{}))
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	var body []struct {
		ChatID string `json:"chatID"`
		At     string `json:"at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body) != 2 || body[1].At != "21:30" {
		t.Fatalf("unexpected jobs %+v", body)
	}
}
