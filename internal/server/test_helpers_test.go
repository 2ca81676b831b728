package server

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonboulle/clockwork"

	"meme-battle/internal/config"
	"meme-battle/internal/game"
)

var testCatalog = game.StaticCatalog{
	{ID: "two-buttons", ContentRef: "/memes/two-buttons.jpg", CaptionFields: 2},
}

// newTestEngine runs on a fake clock, so countdowns never fire on their own.
func newTestEngine(t *testing.T) *game.Engine {
	t.Helper()
	settings := game.DefaultSettings()
	settings.TotalRounds = 1
	engine := game.NewEngine(game.NewStore(), testCatalog, settings, game.WithClock(clockwork.NewFakeClock()))
	t.Cleanup(engine.Close)
	return engine
}

func newTestApp(t *testing.T, records Records) (*httptest.Server, *game.Engine) {
	t.Helper()
	engine := newTestEngine(t)
	cfg := config.Default()
	cfg.PublicURL = "https://memes.example"
	srv := New(engine, records, cfg)
	ts := newTestServer(t, srv.Handler())
	t.Cleanup(ts.Close)
	return ts, engine
}

func newTestServer(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test; listen unavailable: %v", err)
	}
	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	ts.Start()
	return ts
}
