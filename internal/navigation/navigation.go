// navigation — граница «навигации» клиента сессии.
//
// Текущее местоположение пользователя (путь страницы, команда CLI, путь
// запроса к шлюзу) передаётся через context.Context. Переход на страницу входа
// фиксируется в том же контексте и может быть прочитан вызывающей стороной
// (например, HTTP-обработчиком, который вернёт login_url клиенту).
package navigation

import (
	"context"
	"sync"
)

// Navigator — то, что нужно сессии от окружения: узнать текущее
// местоположение и запросить переход.
type Navigator interface {
	Location(ctx context.Context) string
	Redirect(ctx context.Context, to string)
}

type ctxKey struct{}

// state — изменяемое состояние навигации одного запроса/команды.
type state struct {
	mu       sync.Mutex
	location string
	redirect string
}

// WithLocation кладёт в контекст текущее местоположение.
func WithLocation(ctx context.Context, location string) context.Context {
	return context.WithValue(ctx, ctxKey{}, &state{location: location})
}

func stateFrom(ctx context.Context) *state {
	if ctx == nil {
		return nil
	}
	st, _ := ctx.Value(ctxKey{}).(*state)
	return st
}

// LocationFrom возвращает местоположение из контекста ("" если не задано).
func LocationFrom(ctx context.Context) string {
	st := stateFrom(ctx)
	if st == nil {
		return ""
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return st.location
}

// RedirectFrom возвращает запрошенный переход, если он был.
func RedirectFrom(ctx context.Context) (string, bool) {
	st := stateFrom(ctx)
	if st == nil {
		return "", false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return st.redirect, st.redirect != ""
}

// Router — Navigator поверх контекста.
//
// Fallback используется как текущее местоположение, когда контекст его не
// содержит (например, в фоновых задачах). Hook, если задан, вызывается на
// каждый Redirect.
type Router struct {
	Fallback string
	Hook     func(ctx context.Context, to string)
}

// NewRouter создаёт Router.
func NewRouter(fallback string, hook func(ctx context.Context, to string)) *Router {
	return &Router{Fallback: fallback, Hook: hook}
}

func (r *Router) Location(ctx context.Context) string {
	if loc := LocationFrom(ctx); loc != "" {
		return loc
	}
	return r.Fallback
}

// Redirect запоминает переход в контексте и обновляет текущее местоположение.
func (r *Router) Redirect(ctx context.Context, to string) {
	if st := stateFrom(ctx); st != nil {
		st.mu.Lock()
		st.redirect = to
		st.location = to
		st.mu.Unlock()
	}

	if r.Hook != nil {
		r.Hook(ctx, to)
	}
}

// Проверка на соответствие интерфейсу Navigator.
var _ Navigator = (*Router)(nil)
