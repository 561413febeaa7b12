package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/pribylovaa/go-session-client/internal/clients"
	"github.com/pribylovaa/go-session-client/internal/config"
	"github.com/pribylovaa/go-session-client/internal/navigation"
	"github.com/pribylovaa/go-session-client/pkg/log"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// cliLocation — местоположение CLI для границы навигации. В список
// публичных не входит, поэтому завершение сессии всегда даёт подсказку о входе.
const cliLocation = "cli"

type options struct {
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
}

// app — состояние одного запуска sessionctl.
type app struct {
	opts       options
	configPath string

	cfg *config.Config
	log *slog.Logger
}

func newRootCmd(opts options) *cobra.Command {
	a := &app{opts: opts}

	root := &cobra.Command{
		Use:   "sessionctl",
		Short: "Manage an authenticated session against the backend API",
		Long: `sessionctl keeps an access/refresh token pair in a durable store and
sends authorized requests on your behalf. A 401 response triggers a single
token refresh and retry; a failed refresh ends the session.

Configuration sources (highest priority first):
  --config, CONFIG_PATH, ./local.yaml, environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}

			a.cfg = cfg
			a.log = setupLogger(cfg.Env, cmd.ErrOrStderr())
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to config file")

	root.AddCommand(
		a.loginCmd(),
		a.registerCmd(),
		a.logoutCmd(),
		a.statusCmd(),
		a.tokenCmd(),
		a.meCmd(),
		a.refreshCmd(),
		a.requestCmd(),
		a.serveCmd(),
	)

	return root
}

// open собирает клиентов для одной команды. nav == nil — навигатор CLI,
// который подсказывает выполнить вход после завершения сессии.
func (a *app) open(cmd *cobra.Command, nav navigation.Navigator) (context.Context, *clients.Clients, error) {
	ctx := log.Into(cmd.Context(), a.log.With(slog.String("cmd", cmd.Name())))

	if nav == nil {
		errOut := cmd.ErrOrStderr()
		nav = navigation.NewRouter(cliLocation, func(ctx context.Context, to string) {
			log.From(ctx).Info("login_required", slog.String("redirect", to))
			fmt.Fprintln(errOut, "session ended, run `sessionctl login` to sign in again")
		})
	}

	reg := a.opts.registerer
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	cl, err := clients.New(ctx, *a.cfg, a.log, clients.Options{
		Registerer: reg,
		Navigator:  nav,
	})
	if err != nil {
		return nil, nil, err
	}

	return ctx, cl, nil
}

// run открывает клиентов, выполняет fn и закрывает хранилище.
func (a *app) run(cmd *cobra.Command, fn func(ctx context.Context, cl *clients.Clients) error) error {
	ctx, cl, err := a.open(cmd, nil)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := cl.Close(); cerr != nil {
			a.log.Warn("store_close_failed", slog.String("err", cerr.Error()))
		}
	}()

	return fn(ctx, cl)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setupLogger(env string, w io.Writer) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
