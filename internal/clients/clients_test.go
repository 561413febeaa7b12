package clients

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-session-client/internal/config"
	"github.com/pribylovaa/go-session-client/internal/models"
	"github.com/pribylovaa/go-session-client/internal/navigation"
	"github.com/pribylovaa/go-session-client/internal/session"
	"github.com/pribylovaa/go-session-client/internal/storage"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testConfig(baseURL string) config.Config {
	return config.Config{
		Env: "local",
		API: config.APIConfig{
			BaseURL:   baseURL,
			UserAgent: "sessionctl/test",
		},
		Store:      config.StoreConfig{Driver: config.DriverMemory, Namespace: "test"},
		Navigation: config.NavigationConfig{LoginLocation: "/login"},
		Timeouts:   config.TimeoutConfig{Request: 5 * time.Second},
	}
}

// backend выдаёт access-1 при входе и отклоняет любое обновление.
func backend(t *testing.T) (*httptest.Server, *sync.Map) {
	t.Helper()

	var seen sync.Map
	mux := http.NewServeMux()
	handleMethod(mux, "POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		seen.Store("ua", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.AuthResponse{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			TokenType:    "bearer",
			User:         models.Profile{"id": "u1"},
		})
	})
	handleMethod(mux, "POST /api/v1/auth/refresh", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	handleMethod(mux, "GET /api/v1/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		seen.Store("rid", r.Header.Get("X-Request-Id"))
		_, _ = w.Write([]byte(`{"id":"u1","full_name":"Test"}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestNew_WiresSessionAndAccount(t *testing.T) {
	t.Parallel()

	srv, seen := backend(t)
	reg := prometheus.NewRegistry()

	cl, err := New(context.Background(), testConfig(srv.URL), discard(), Options{Registerer: reg})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cl.Close() })

	ctx := context.Background()
	_, err = cl.Account.Login(ctx, "user@example.com", "secret")
	require.NoError(t, err)

	ua, _ := seen.Load("ua")
	require.Equal(t, "sessionctl/test", ua)

	p, err := cl.Account.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "Test", p["full_name"])

	rid, _ := seen.Load("rid")
	require.NotEmpty(t, rid, "transport attaches a request id")

	n, err := testutil.GatherAndCount(reg, "session_client_requests_total")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestNew_TerminationRedirectsThroughNavigator(t *testing.T) {
	t.Parallel()

	srv, _ := backend(t)

	var redirected []string
	nav := navigation.NewRouter("/dashboard", func(_ context.Context, to string) {
		redirected = append(redirected, to)
	})

	cl, err := New(context.Background(), testConfig(srv.URL), discard(), Options{
		Registerer: prometheus.NewRegistry(),
		Navigator:  nav,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cl.Close() })

	ctx := context.Background()
	require.NoError(t, cl.Session.Establish(ctx, "stale", "refresh-1", nil))

	_, err = cl.Account.Me(ctx)
	require.ErrorIs(t, err, session.ErrRefreshFailed)
	require.Equal(t, []string{"/login"}, redirected)

	_, err = cl.Store.Get(ctx, session.KeyRefreshToken)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestNew_BadBaseURL(t *testing.T) {
	t.Parallel()

	cfg := testConfig("not a url")
	_, err := New(context.Background(), cfg, discard(), Options{Registerer: prometheus.NewRegistry()})
	require.ErrorIs(t, err, session.ErrInvalidOptions)
}

func TestOpenStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	st, err := OpenStore(ctx, config.StoreConfig{Driver: config.DriverMemory})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	path := filepath.Join(t.TempDir(), "s.db")
	st, err = OpenStore(ctx, config.StoreConfig{Driver: config.DriverSQLite, SQLitePath: path, Namespace: "ns"})
	require.NoError(t, err)
	require.NoError(t, st.Set(ctx, "k", "v"))
	require.NoError(t, st.Close())

	_, err = OpenStore(ctx, config.StoreConfig{Driver: "etcd"})
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "unknown driver"))

	_, err = OpenStore(ctx, config.StoreConfig{Driver: config.DriverRedis, RedisURL: "::bad::"})
	require.Error(t, err)
}
