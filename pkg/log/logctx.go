// log хранит request-scoped логгер в context.Context.
//
// Логгер кладут в контекст на краю (CLI-команда, HTTP-мидлвар, транспорт),
// а все нижележащие слои достают его через From и не держат своих ссылок.
package log

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// Into кладёт логгер в контекст.
func Into(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From достаёт логгер из контекста (или возвращает slog.Default()).
func From(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return slog.Default()
	}

	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}

	return slog.Default()
}

// With обогащает логгер из контекста атрибутами и кладёт результат обратно.
func With(ctx context.Context, args ...any) context.Context {
	return Into(ctx, From(ctx).With(args...))
}
