package clients

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pribylovaa/go-session-client/internal/clients/transport"
	"github.com/pribylovaa/go-session-client/internal/config"
	"github.com/pribylovaa/go-session-client/internal/metrics"
	"github.com/pribylovaa/go-session-client/internal/navigation"
	"github.com/pribylovaa/go-session-client/internal/service"
	"github.com/pribylovaa/go-session-client/internal/session"
	"github.com/pribylovaa/go-session-client/internal/storage"
	"github.com/pribylovaa/go-session-client/internal/storage/memory"
	"github.com/pribylovaa/go-session-client/internal/storage/postgres"
	"github.com/pribylovaa/go-session-client/internal/storage/redis"
	"github.com/pribylovaa/go-session-client/internal/storage/sqlite"
)

// Clients агрегирует всё, что нужно для работы с сессией: хранилище,
// исходящий HTTP-клиент, саму сессию и сервис учётной записи.
type Clients struct {
	Store   storage.Store
	HTTP    *http.Client
	Metrics *metrics.Metrics
	Session *session.Session
	Account *service.Service
}

// Options — зависимости окружения, которые не задаются конфигурацией.
type Options struct {
	// Registerer для метрик; nil — prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
	// Navigator — граница навигации; nil — navigation.Router без hook.
	Navigator navigation.Navigator
	// Base — нижний RoundTripper; nil — http.DefaultTransport.
	Base http.RoundTripper
}

// New открывает хранилище и собирает сессию поверх него.
func New(ctx context.Context, cfg config.Config, log *slog.Logger, opts Options) (*Clients, error) {
	const op = "internal/clients/New"

	store, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Цепочка исходящих middleware: metadata -> timeout -> logging.
	hc := transport.New(transport.Options{
		UserAgent: cfg.API.UserAgent,
		Timeout:   cfg.Timeouts.Request,
		Logger:    log,
		Base:      opts.Base,
	})

	m := metrics.New(opts.Registerer)

	sess, err := session.New(store, session.Options{
		BaseURL:         cfg.API.BaseURL,
		RefreshPath:     cfg.API.RefreshPath,
		LoginLocation:   cfg.Navigation.LoginLocation,
		PublicLocations: cfg.Navigation.PublicLocations,
		Client:          hc,
		Navigator:       opts.Navigator,
		Metrics:         m,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("%s: session: %w", op, err)
	}

	acc, err := service.New(sess, hc, cfg.API.BaseURL, service.Paths{
		Login:    cfg.API.LoginPath,
		Register: cfg.API.RegisterPath,
		Me:       cfg.API.MePath,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("%s: service: %w", op, err)
	}

	return &Clients{
		Store:   store,
		HTTP:    hc,
		Metrics: m,
		Session: sess,
		Account: acc,
	}, nil
}

// OpenStore открывает хранилище, выбранное в конфигурации.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (storage.Store, error) {
	const op = "internal/clients/OpenStore"

	var (
		st  storage.Store
		err error
	)

	switch cfg.Driver {
	case config.DriverMemory:
		st = memory.New()
	case config.DriverSQLite, "":
		st, err = sqlite.New(ctx, cfg.SQLitePath, cfg.Namespace)
	case config.DriverRedis:
		st, err = redis.New(ctx, cfg.RedisURL, cfg.Namespace)
	case config.DriverPostgres:
		st, err = postgres.New(ctx, cfg.PostgresURL, cfg.Namespace)
	default:
		return nil, fmt.Errorf("%s: unknown driver %q", op, cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", op, cfg.Driver, err)
	}

	return st, nil
}

// Close закрывает хранилище.
func (c *Clients) Close() error {
	return c.Store.Close()
}
