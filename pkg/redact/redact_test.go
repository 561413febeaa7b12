package redact

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmail_Table(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "ASCII_local_gt_2", in: "foobar@example.com", want: "fo***@example.com"},
		{name: "ASCII_local_len_2", in: "ab@ex.com", want: "***@ex.com"},
		{name: "invalid_no_at", in: "no-at-here", want: "***"},
		{name: "invalid_multiple_at", in: "a@b@c", want: "***"},
		{name: "empty_string", in: "", want: "***"},
		{name: "unicode_local", in: "юзер@пример.рф", want: "юз***@пример.рф"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, Email(tt.in))
		})
	}
}

func TestToken_EmptyStaysEmpty(t *testing.T) {
	t.Parallel()

	require.Equal(t, "", Token(""))
	require.Equal(t, "[REDACTED_TOKEN]", Token("eyJhbGciOi.x.y"))
	require.Equal(t, "[REDACTED_PASSWORD]", Password())
}

func TestHeaders_MasksSensitiveAndCopiesRest(t *testing.T) {
	t.Parallel()

	in := http.Header{}
	in.Set("Authorization", "Bearer secret-access")
	in.Set("Cookie", "sid=abc")
	in.Set("X-Request-Id", "rid-1")

	out := Headers(in)

	require.Equal(t, "Bearer [REDACTED_TOKEN]", out.Get("Authorization"))
	require.Equal(t, "[REDACTED_TOKEN]", out.Get("Cookie"))
	require.Equal(t, "rid-1", out.Get("X-Request-Id"))

	// Исходные заголовки не изменились.
	require.Equal(t, "Bearer secret-access", in.Get("Authorization"))
}
