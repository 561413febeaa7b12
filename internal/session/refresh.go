package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/pribylovaa/go-session-client/internal/metrics"
	"github.com/pribylovaa/go-session-client/internal/models"
	"github.com/pribylovaa/go-session-client/internal/storage"
	"github.com/pribylovaa/go-session-client/pkg/log"
)

const (
	refreshFlightKey = "refresh"

	// maxRefreshBody — ограничение на размер ответа эндпоинта обновления.
	maxRefreshBody = 1 << 20
)

var errNoAccessToken = errors.New("response has no access_token")

// Refresh выпускает новый access-токен по сохранённому refresh-токену.
//
// Правила:
//   - нет refresh-токена: сессия завершается, возвращается ErrNoRefreshToken,
//     сетевого вызова нет;
//   - 2xx с непустым access_token: перезаписывается только access-токен;
//     refresh-токен из ответа игнорируется;
//   - любая другая ситуация (сеть, не-2xx, битый JSON, нет поля) завершает
//     сессию, ошибка оборачивает ErrRefreshFailed.
//
// Конкурентные вызовы разделяют один запрос к серверу. Общий запрос не
// отменяется при отмене ctx первого вызывающего; каждый вызывающий перестаёт
// ждать по своему ctx. При неудаче переход на вход запрашивается для
// местоположения каждого дождавшегося вызывающего; переставший ждать
// перехода не получает.
func (s *Session) Refresh(ctx context.Context) (string, error) {
	const op = "session.Refresh"

	ch := s.refreshGroup.DoChan(refreshFlightKey, func() (any, error) {
		return s.refresh(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			// Сессию очищает общий вызов, переход нужен каждому ожидающему.
			s.redirectIfNeeded(ctx)
			return "", res.Err
		}

		if res.Shared {
			log.From(ctx).Debug("refresh_shared", slog.String("op", op))
		}

		return res.Val.(string), nil
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	}
}

func (s *Session) refresh(ctx context.Context) (string, error) {
	const op = "session.Refresh"

	lg := log.From(ctx)

	fail := func(result string, cause error) (string, error) {
		s.metrics.ObserveRefresh(result)
		lg.Warn("refresh_failed", slog.String("op", op), slog.String("result", result), slog.String("err", cause.Error()))
		_ = s.clear(ctx)

		if errors.Is(cause, ErrNoRefreshToken) {
			return "", fmt.Errorf("%s: %w", op, cause)
		}

		return "", fmt.Errorf("%s: %w: %w", op, ErrRefreshFailed, cause)
	}

	rt, err := s.store.Get(ctx, KeyRefreshToken)
	switch {
	case errors.Is(err, storage.ErrNotFound), err == nil && rt == "":
		return fail(metrics.RefreshNoToken, ErrNoRefreshToken)
	case err != nil:
		return fail(metrics.RefreshError, err)
	}

	body, err := json.Marshal(models.RefreshRequest{RefreshToken: rt})
	if err != nil {
		return fail(metrics.RefreshError, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.refreshURL, bytes.NewReader(body))
	if err != nil {
		return fail(metrics.RefreshError, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fail(metrics.RefreshError, err)
	}
	defer drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(metrics.RefreshRejected, &StatusError{Code: resp.StatusCode})
	}

	var out models.RefreshResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxRefreshBody)).Decode(&out); err != nil {
		return fail(metrics.RefreshError, err)
	}

	if out.AccessToken == "" {
		return fail(metrics.RefreshError, errNoAccessToken)
	}

	if err := s.store.Set(ctx, KeyAccessToken, out.AccessToken); err != nil {
		return fail(metrics.RefreshError, err)
	}

	s.metrics.ObserveRefresh(metrics.RefreshOK)
	lg.Info("access_token_refreshed", slog.String("op", op))

	return out.AccessToken, nil
}
