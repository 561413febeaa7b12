package log

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Тесты меняют slog.Default(), поэтому t.Parallel() не используется.

func newSilent() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func swapDefault(t *testing.T, l *slog.Logger) {
	t.Helper()
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })
	slog.SetDefault(l)
}

func TestFrom_ReturnsDefault_WhenNoLoggerInContext(t *testing.T) {
	def := newSilent()
	swapDefault(t, def)

	require.Equal(t, def, From(context.Background()))
}

func TestIntoAndFrom_RoundTrip(t *testing.T) {
	def := newSilent()
	swapDefault(t, def)

	l := newSilent()
	ctx := Into(context.Background(), l)

	require.Equal(t, l, From(ctx))
	require.Equal(t, def, From(context.Background()))
}

// From устойчив к «мусорным» значениям по нашему ключу и к *slog.Logger(nil).
func TestFrom_ReturnsDefault_WhenStoredValueIsWrongTypeOrNil(t *testing.T) {
	def := newSilent()
	swapDefault(t, def)

	ctxWrong := context.WithValue(context.Background(), ctxKey{}, "not-a-logger")
	require.Equal(t, def, From(ctxWrong))

	var nilLogger *slog.Logger
	ctxNil := context.WithValue(context.Background(), ctxKey{}, nilLogger)
	require.Equal(t, def, From(ctxNil))
}

func TestWith_EnrichesAndDoesNotTouchParent(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	parent := Into(context.Background(), base)
	child := With(parent, slog.String("op", "session.Refresh"))

	From(child).Info("ping")
	require.Contains(t, buf.String(), "op=session.Refresh")

	buf.Reset()
	From(parent).Info("ping")
	require.NotContains(t, buf.String(), "op=")
}

// Into не меняет отмену и дедлайн родителя.
func TestInto_PreservesCancellationAndDeadline(t *testing.T) {
	parentDL, cancelDL := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancelDL()

	child := Into(parentDL, newSilent())

	cdl, ok := child.Deadline()
	require.True(t, ok)
	pdl, _ := parentDL.Deadline()
	require.WithinDuration(t, pdl, cdl, time.Millisecond)

	select {
	case <-child.Done():
		require.ErrorIs(t, child.Err(), context.DeadlineExceeded)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("ожидали дедлайн у дочернего контекста")
	}
}
