package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pribylovaa/go-session-client/internal/clients"
	"github.com/pribylovaa/go-session-client/internal/models"
	"github.com/pribylovaa/go-session-client/internal/navigation"
	"github.com/pribylovaa/go-session-client/internal/storage"
)

var errNoSession = errors.New("no active session")

func (a *app) loginCmd() *cobra.Command {
	var (
		email, password       string
		passwordStdin         bool
		accessTok, refreshTok string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the token pair",
		Long: `Sign in with e-mail and password and store the returned token pair.

With --access-token and --refresh-token an existing pair is stored as is,
without contacting the backend.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func(ctx context.Context, cl *clients.Clients) error {
				if accessTok != "" || refreshTok != "" {
					if accessTok == "" || refreshTok == "" {
						return errors.New("--access-token and --refresh-token must be set together")
					}
					if err := cl.Session.Establish(ctx, accessTok, refreshTok, nil); err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), cl.Session.Status(ctx))
				}

				pw, err := readPassword(cmd, password, passwordStdin)
				if err != nil {
					return err
				}

				if _, err := cl.Account.Login(ctx, email, pw); err != nil {
					return err
				}

				return printJSON(cmd.OutOrStdout(), cl.Session.Status(ctx))
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account e-mail")
	cmd.Flags().StringVar(&password, "password", "", "account password (or SESSIONCTL_PASSWORD)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	cmd.Flags().StringVar(&accessTok, "access-token", "", "store this access token instead of signing in")
	cmd.Flags().StringVar(&refreshTok, "refresh-token", "", "store this refresh token instead of signing in")

	return cmd
}

func (a *app) registerCmd() *cobra.Command {
	var (
		req           models.RegisterRequest
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and store the token pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func(ctx context.Context, cl *clients.Clients) error {
				pw, err := readPassword(cmd, req.Password, passwordStdin)
				if err != nil {
					return err
				}
				in := req
				in.Password = pw

				if _, err := cl.Account.Register(ctx, in); err != nil {
					return err
				}

				return printJSON(cmd.OutOrStdout(), cl.Session.Status(ctx))
			})
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "account e-mail")
	cmd.Flags().StringVar(&req.Password, "password", "", "account password (or SESSIONCTL_PASSWORD)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	cmd.Flags().StringVar(&req.FullName, "full-name", "", "full name")
	cmd.Flags().StringVar(&req.CompanyName, "company-name", "", "company name")

	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func(ctx context.Context, cl *clients.Clients) error {
				// Явный выход: пользователь уже на странице входа, подсказка не нужна.
				ctx = navigation.WithLocation(ctx, a.cfg.Navigation.LoginLocation)
				return cl.Account.Logout(ctx)
			})
		},
	}
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the stored access token is present and unexpired",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func(ctx context.Context, cl *clients.Clients) error {
				return printJSON(cmd.OutOrStdout(), cl.Session.Status(ctx))
			})
		},
	}
}

func (a *app) tokenCmd() *cobra.Command {
	var withRefresh bool

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func(ctx context.Context, cl *clients.Clients) error {
				c, err := cl.Session.Credentials(ctx)
				if err != nil {
					if errors.Is(err, storage.ErrNotFound) {
						return errNoSession
					}
					return err
				}

				if withRefresh {
					return printJSON(cmd.OutOrStdout(), models.RefreshResponse{
						AccessToken:  c.AccessToken,
						RefreshToken: c.RefreshToken,
						TokenType:    "bearer",
					})
				}

				_, err = fmt.Fprintln(cmd.OutOrStdout(), c.AccessToken)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&withRefresh, "with-refresh", false, "print both tokens as JSON")
	return cmd
}

func (a *app) meCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Fetch the current user profile from the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func(ctx context.Context, cl *clients.Clients) error {
				p, err := cl.Account.Me(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), p)
			})
		},
	}
}

func (a *app) refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, func(ctx context.Context, cl *clients.Clients) error {
				if _, err := cl.Session.Refresh(ctx); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), cl.Session.Status(ctx))
			})
		},
	}
}

func (a *app) requestCmd() *cobra.Command {
	var (
		data    string
		headers []string
	)

	cmd := &cobra.Command{
		Use:   "request METHOD PATH",
		Short: "Send an authorized request and print the response body",
		Long: `Send an authorized request to PATH (resolved against api.base_url).

The response status goes to stderr, the body to stdout. --data @file reads
the body from a file, --data @- from stdin.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, cl *clients.Clients) error {
				body, err := readData(cmd, data)
				if err != nil {
					return err
				}

				target, err := cl.Session.URL(args[1])
				if err != nil {
					return err
				}

				req, err := http.NewRequestWithContext(ctx, strings.ToUpper(args[0]), target, body)
				if err != nil {
					return err
				}

				for _, h := range headers {
					k, v, ok := strings.Cut(h, ":")
					if !ok {
						return fmt.Errorf("bad header %q, want \"Name: value\"", h)
					}
					req.Header.Add(strings.TrimSpace(k), strings.TrimSpace(v))
				}

				if body != nil && req.Header.Get("Content-Type") == "" {
					req.Header.Set("Content-Type", "application/json")
				}

				resp, err := cl.Session.Do(req)
				if resp != nil {
					defer resp.Body.Close()
				}
				if err != nil {
					return err
				}

				fmt.Fprintln(cmd.ErrOrStderr(), resp.Status)
				_, err = io.Copy(cmd.OutOrStdout(), resp.Body)
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "request body, @file or @- for stdin")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "extra header, \"Name: value\"")

	return cmd
}

// readPassword берёт пароль из флага, stdin или SESSIONCTL_PASSWORD.
func readPassword(cmd *cobra.Command, flag string, fromStdin bool) (string, error) {
	if fromStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	if flag != "" {
		return flag, nil
	}

	return os.Getenv("SESSIONCTL_PASSWORD"), nil
}

func readData(cmd *cobra.Command, data string) (io.Reader, error) {
	switch {
	case data == "":
		return nil, nil
	case data == "@-":
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, err
		}
		return strings.NewReader(string(b)), nil
	case strings.HasPrefix(data, "@"):
		b, err := os.ReadFile(data[1:])
		if err != nil {
			return nil, err
		}
		return strings.NewReader(string(b)), nil
	default:
		return strings.NewReader(data), nil
	}
}
