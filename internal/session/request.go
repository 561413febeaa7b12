package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/pribylovaa/go-session-client/pkg/log"
)

// Do отправляет запрос от имени сессии.
//
// Правила:
//   - Authorization: Bearer <access> ставится, только если вызывающий не задал
//     Authorization сам и токен есть в хранилище;
//   - на 401 токен обновляется и запрос повторяется ровно один раз;
//   - если обновление не удалось, сессия уже завершена и возвращается ошибка
//     с ErrRefreshFailed;
//   - если повтор снова получил 401, сессия завершается, а ответ возвращается
//     без изменений вместе с ErrUnauthorized (тело ответа закрывает вызывающий);
//   - прочие статусы и сетевые ошибки возвращаются как есть.
//
// Тело запроса буферизуется, если у запроса нет GetBody, чтобы повтор мог его
// переотправить. Исходный req не изменяется.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	return s.do(req, maxAuthRetries)
}

func (s *Session) do(req *http.Request, retries int) (*http.Response, error) {
	const op = "session.Do"

	ctx := req.Context()
	lg := log.From(ctx)

	tmpl, err := replayable(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	callerAuth := tmpl.Header.Get("Authorization") != ""

	token := s.accessToken(ctx)
	resp, err := s.send(tmpl, token, callerAuth)

	for {
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusUnauthorized {
			return resp, nil
		}

		if retries == 0 {
			lg.Warn("unauthorized_after_refresh", slog.String("op", op), slog.String("url", tmpl.URL.Redacted()))
			_ = s.Terminate(ctx)
			return resp, fmt.Errorf("%s: %w", op, ErrUnauthorized)
		}
		retries--

		drain(resp.Body)

		token, err = s.renew(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		lg.Debug("request_retry", slog.String("url", tmpl.URL.Redacted()))
		resp, err = s.send(tmpl, token, callerAuth)
	}
}

// Request резолвит path относительно BaseURL и отправляет запрос через Do.
//
// body: nil — без тела; io.Reader и []byte отправляются как есть; остальное
// кодируется в JSON.
func (s *Session) Request(ctx context.Context, method, path string, body any) (*http.Response, error) {
	const op = "session.Request"

	target, err := resolve(s.base, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		rd     io.Reader
		isJSON bool
	)
	switch b := body.(type) {
	case nil:
	case io.Reader:
		rd = b
	case []byte:
		rd = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		rd = bytes.NewReader(raw)
		isJSON = true
	}

	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	req.Header.Set("Accept", "application/json")
	if isJSON {
		req.Header.Set("Content-Type", "application/json")
	}

	return s.Do(req)
}

// renew возвращает токен для повтора. Если токен в хранилище уже сменился
// с момента отправки запроса, обновление не нужно.
func (s *Session) renew(ctx context.Context, seen string) (string, error) {
	if cur := s.accessToken(ctx); cur != "" && cur != seen {
		return cur, nil
	}

	return s.Refresh(ctx)
}

func (s *Session) send(tmpl *http.Request, token string, callerAuth bool) (*http.Response, error) {
	ctx := tmpl.Context()
	r := tmpl.Clone(ctx)

	if tmpl.GetBody != nil {
		body, err := tmpl.GetBody()
		if err != nil {
			return nil, err
		}
		r.Body = body
	}

	if !callerAuth && token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(r)
	if err != nil {
		s.metrics.ObserveRequest(0)
		return nil, err
	}

	s.metrics.ObserveRequest(resp.StatusCode)
	return resp, nil
}

// replayable возвращает копию req, тело которой можно прочитать повторно.
func replayable(req *http.Request) (*http.Request, error) {
	r := req.Clone(req.Context())

	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return r, nil
	}

	raw, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, err
	}

	r.ContentLength = int64(len(raw))
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(raw)), nil
	}
	r.Body, _ = r.GetBody()

	return r, nil
}

// drain дочитывает и закрывает тело, чтобы соединение вернулось в пул.
func drain(body io.ReadCloser) {
	if body == nil {
		return
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}
