package http

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/beamchat/server/internal/auth"
	"github.com/beamchat/server/internal/config"
	"github.com/beamchat/server/internal/core"
	"github.com/beamchat/server/internal/store"
	"github.com/beamchat/server/internal/store/sqlite"
)

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	return st
}

// createTestAuthService creates an auth service for testing.
func createTestAuthService(st store.Store) *auth.Service {
	jwtConfig := &auth.JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}

	return auth.NewService(st, jwtConfig)
}

// startTestServer spins up the full HTTP surface backed by in-memory
// storage and a live hub.
func startTestServer(t *testing.T) (*httptest.Server, store.Store, *auth.Service, *core.Hub) {
	t.Helper()

	st := createTestStore(t)
	authService := createTestAuthService(st)
	logger := zerolog.Nop()

	hub := core.NewHub(st, nil, &logger, time.Second)
	server := NewServer(hub, authService, st, config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
	}, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts, st, authService, hub
}
