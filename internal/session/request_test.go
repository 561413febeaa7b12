package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-session-client/internal/metrics"
	"github.com/pribylovaa/go-session-client/internal/models"
	"github.com/pribylovaa/go-session-client/internal/storage"
	"github.com/pribylovaa/go-session-client/internal/storage/memory"
)

// backend — фейковый бэкенд: /api/data пускает только с валидным токеном,
// /api/v1/auth/refresh выдаёт новый токен.
type backend struct {
	mu         sync.Mutex
	valid      string // токен, который /api/data принимает
	fresh      string // токен, который выдаёт refresh
	rotated    string // refresh_token в ответе refresh (клиент должен игнорировать)
	refreshSt  int    // статус ответа refresh (0 — 200)
	refreshRaw string // сырое тело ответа refresh (перекрывает JSON)
	alwaysDeny bool   // /api/data всегда 401

	refreshCalls atomic.Int32
	dataCalls    atomic.Int32
	lastAuth     []string
	lastBodies   []string
	lastRefresh  models.RefreshRequest

	refreshGate chan struct{} // если не nil, refresh ждёт закрытия
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/data", func(w http.ResponseWriter, r *http.Request) {
		b.dataCalls.Add(1)
		body, _ := io.ReadAll(r.Body)

		b.mu.Lock()
		b.lastAuth = append(b.lastAuth, r.Header.Get("Authorization"))
		b.lastBodies = append(b.lastBodies, string(body))
		ok := !b.alwaysDeny && r.Header.Get("Authorization") == "Bearer "+b.valid
		b.mu.Unlock()

		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Could not validate credentials"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	mux.HandleFunc("/api/boom", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	})

	mux.HandleFunc("/api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		b.refreshCalls.Add(1)

		if b.refreshGate != nil {
			<-b.refreshGate
		}

		var in models.RefreshRequest
		_ = json.NewDecoder(r.Body).Decode(&in)

		b.mu.Lock()
		b.lastRefresh = in
		st, raw := b.refreshSt, b.refreshRaw
		fresh, rotated := b.fresh, b.rotated
		if st == 0 {
			b.valid = fresh
		}
		b.mu.Unlock()

		if st != 0 {
			w.WriteHeader(st)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if raw != "" {
			_, _ = w.Write([]byte(raw))
			return
		}

		_ = json.NewEncoder(w).Encode(models.RefreshResponse{
			AccessToken:  fresh,
			RefreshToken: rotated,
			TokenType:    "bearer",
		})
	})

	return mux
}

type fixture struct {
	srv   *httptest.Server
	be    *backend
	store *memory.Storage
	nav   *recordingNav
	s     *Session
}

func newFixture(t *testing.T, be *backend, opts Options) *fixture {
	t.Helper()

	srv := httptest.NewServer(be.handler())
	t.Cleanup(srv.Close)

	store := memory.New()
	nav := &recordingNav{location: "/reports"}

	opts.BaseURL = srv.URL
	opts.Client = srv.Client()
	opts.Navigator = nav

	return &fixture{srv: srv, be: be, store: store, nav: nav, s: newTestSession(t, store, opts)}
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, f.srv.URL+path, nil)
	require.NoError(t, err)
	return f.s.Do(req)
}

func TestDo_NoStoredToken_NoAuthorizationHeader(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &backend{valid: "x"}, Options{})
	f.nav.location = "/login"

	resp, err := f.get(t, "/api/data")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrNoRefreshToken)
	require.Nil(t, resp)

	require.Equal(t, []string{""}, f.be.lastAuth)
	require.EqualValues(t, 0, f.be.refreshCalls.Load())
}

func TestDo_AttachesBearer(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &backend{valid: "a1"}, Options{})
	require.NoError(t, f.s.Establish(context.Background(), "a1", "r1", nil))

	resp, err := f.get(t, "/api/data")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []string{"Bearer a1"}, f.be.lastAuth)
	require.EqualValues(t, 0, f.be.refreshCalls.Load())
}

func TestDo_CallerAuthorizationWins(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &backend{valid: "custom"}, Options{})
	require.NoError(t, f.s.Establish(context.Background(), "a1", "r1", nil))

	req, err := http.NewRequest(http.MethodGet, f.srv.URL+"/api/data", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer custom")

	resp, err := f.s.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []string{"Bearer custom"}, f.be.lastAuth)
	require.Equal(t, "Bearer custom", req.Header.Get("Authorization"))
}

func TestDo_RefreshAndRetryOnce(t *testing.T) {
	t.Parallel()

	be := &backend{valid: "server-side", fresh: "a2", rotated: "r-rotated"}
	f := newFixture(t, be, Options{})
	ctx := context.Background()
	require.NoError(t, f.s.Establish(ctx, "a1", "r1", models.Profile{"is_admin": true}))

	req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/api/data", io.NopCloser(strings.NewReader(`{"q":1}`)))
	require.NoError(t, err)

	resp, err := f.s.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 1, be.refreshCalls.Load())
	require.EqualValues(t, 2, be.dataCalls.Load())
	require.Equal(t, []string{"Bearer a1", "Bearer a2"}, be.lastAuth)
	require.Equal(t, []string{`{"q":1}`, `{"q":1}`}, be.lastBodies)
	require.Equal(t, "r1", be.lastRefresh.RefreshToken)

	// Только access-токен перезаписан; refresh-токен и профиль на месте.
	a, err := f.store.Get(ctx, KeyAccessToken)
	require.NoError(t, err)
	require.Equal(t, "a2", a)

	r, err := f.store.Get(ctx, KeyRefreshToken)
	require.NoError(t, err)
	require.Equal(t, "r1", r)

	p, err := f.s.Profile(ctx)
	require.NoError(t, err)
	require.True(t, p.IsAdmin())

	require.Empty(t, f.nav.redirects)
}

func TestDo_RefreshRejected_TerminatesSession(t *testing.T) {
	t.Parallel()

	be := &backend{valid: "server-side", refreshSt: http.StatusUnauthorized}
	f := newFixture(t, be, Options{})
	ctx := context.Background()
	require.NoError(t, f.s.Establish(ctx, "a1", "r1", models.Profile{"is_admin": true}))

	resp, err := f.get(t, "/api/data")
	require.Nil(t, resp)
	require.ErrorIs(t, err, ErrRefreshFailed)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusUnauthorized, se.Code)

	require.EqualValues(t, 1, be.dataCalls.Load())
	for _, k := range []string{KeyAccessToken, KeyRefreshToken, KeyProfile} {
		_, gerr := f.store.Get(ctx, k)
		require.ErrorIs(t, gerr, storage.ErrNotFound, k)
	}
	require.Equal(t, []string{DefaultLoginLocation}, f.nav.redirects)
}

func TestDo_NoRefreshToken_NoNetworkRefresh(t *testing.T) {
	t.Parallel()

	be := &backend{valid: "server-side"}
	f := newFixture(t, be, Options{})
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, KeyAccessToken, "a1"))

	_, err := f.get(t, "/api/data")
	require.ErrorIs(t, err, ErrNoRefreshToken)
	require.ErrorIs(t, err, ErrRefreshFailed)
	require.EqualValues(t, 0, be.refreshCalls.Load())

	_, gerr := f.store.Get(ctx, KeyAccessToken)
	require.ErrorIs(t, gerr, storage.ErrNotFound)
	require.Equal(t, []string{DefaultLoginLocation}, f.nav.redirects)
}

// Повторный 401 после успешного обновления: ровно два запроса, одно
// обновление, ответ возвращается как есть, сессия завершена.
func TestDo_RetryAlso401_Bounded(t *testing.T) {
	t.Parallel()

	be := &backend{fresh: "a2", alwaysDeny: true}
	f := newFixture(t, be, Options{})
	ctx := context.Background()
	require.NoError(t, f.s.Establish(ctx, "a1", "r1", nil))

	resp, err := f.get(t, "/api/data")
	require.ErrorIs(t, err, ErrUnauthorized)
	require.NotNil(t, resp)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	require.Contains(t, string(body), "Could not validate credentials")

	require.EqualValues(t, 2, be.dataCalls.Load())
	require.EqualValues(t, 1, be.refreshCalls.Load())
	require.False(t, f.s.IsAuthenticated(ctx))
	require.Equal(t, []string{DefaultLoginLocation}, f.nav.redirects)
}

func TestDo_OtherStatusesPassThrough(t *testing.T) {
	t.Parallel()

	be := &backend{}
	f := newFixture(t, be, Options{})
	require.NoError(t, f.s.Establish(context.Background(), "a1", "r1", nil))

	resp, err := f.get(t, "/api/boom")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, "boom", string(body))
	require.EqualValues(t, 0, be.refreshCalls.Load())
}

func TestRefresh_MalformedResponses(t *testing.T) {
	t.Parallel()

	for name, raw := range map[string]string{
		"not_json":      `<<html>>`,
		"missing_field": `{"token_type":"bearer"}`,
		"empty_access":  `{"access_token":""}`,
	} {
		raw := raw
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			be := &backend{refreshRaw: raw}
			f := newFixture(t, be, Options{})
			ctx := context.Background()
			require.NoError(t, f.s.Establish(ctx, "a1", "r1", nil))

			_, err := f.s.Refresh(ctx)
			require.ErrorIs(t, err, ErrRefreshFailed)

			_, gerr := f.store.Get(ctx, KeyRefreshToken)
			require.ErrorIs(t, gerr, storage.ErrNotFound)
		})
	}
}

type failingDoer struct {
	err   error
	calls atomic.Int32
}

func (d *failingDoer) Do(*http.Request) (*http.Response, error) {
	d.calls.Add(1)
	return nil, d.err
}

// Сетевая ошибка основного запроса пробрасывается без обновления и без
// завершения сессии.
func TestDo_NetworkErrorPropagates(t *testing.T) {
	t.Parallel()

	netErr := errors.New("connection reset by peer")
	doer := &failingDoer{err: netErr}
	store := memory.New()
	s := newTestSession(t, store, Options{Client: doer})

	ctx := context.Background()
	require.NoError(t, s.Establish(ctx, "a1", "r1", nil))

	req, err := http.NewRequest(http.MethodGet, "http://backend.test/api/data", nil)
	require.NoError(t, err)

	resp, err := s.Do(req)
	require.Nil(t, resp)
	require.ErrorIs(t, err, netErr)
	require.EqualValues(t, 1, doer.calls.Load())

	a, gerr := store.Get(ctx, KeyAccessToken)
	require.NoError(t, gerr)
	require.Equal(t, "a1", a)
}

func TestRequest_JSONBody(t *testing.T) {
	t.Parallel()

	be := &backend{valid: "a1"}
	f := newFixture(t, be, Options{})
	require.NoError(t, f.s.Establish(context.Background(), "a1", "r1", nil))

	resp, err := f.s.Request(context.Background(), http.MethodPost, "/api/data", map[string]int{"n": 1})
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []string{`{"n":1}`}, be.lastBodies)
}

func TestDo_Metrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	be := &backend{valid: "server-side", fresh: "a2"}
	f := newFixture(t, be, Options{Metrics: m})
	require.NoError(t, f.s.Establish(context.Background(), "a1", "r1", nil))

	resp, err := f.get(t, "/api/data")
	require.NoError(t, err)
	resp.Body.Close()

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP session_client_refresh_total Access token refresh attempts by result.
# TYPE session_client_refresh_total counter
session_client_refresh_total{result="ok"} 1
`), "session_client_refresh_total"))
}

// Таймаут на стороне вызывающего прерывает запрос, сессия остаётся.
func TestDo_ContextDeadline(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	store := memory.New()
	s := newTestSession(t, store, Options{BaseURL: srv.URL, Client: srv.Client()})
	ctx := context.Background()
	require.NoError(t, s.Establish(ctx, "a1", "r1", nil))

	cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	_, err := s.Request(cctx, http.MethodGet, "/slow", nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	a, gerr := store.Get(ctx, KeyAccessToken)
	require.NoError(t, gerr)
	require.Equal(t, "a1", a)
}
