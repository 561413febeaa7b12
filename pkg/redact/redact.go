// redact предоставляет утилиты безопасного редактирования чувствительных
// данных для логов: e-mail, токены, заголовки авторизации.
package redact

import (
	"net/http"
	"strings"
)

// Email маскирует e-mail для логирования.
//
// Правила:
//   - строка должна содержать РОВНО один символ '@', иначе возвращается "***";
//   - локальная часть заменяется на первые два символа (по рунам) + "***";
//   - если длина локальной части ≤ 2 символов — возвращается "***@<domain>";
//   - доменная часть возвращается без изменений.
func Email(s string) string {
	if strings.Count(s, "@") != 1 {
		return "***"
	}

	i := strings.IndexByte(s, '@')
	local, domain := s[:i], s[i+1:]

	lr := []rune(local)
	if len(lr) > 2 {
		local = string(lr[:2]) + "***"
	} else {
		local = "***"
	}

	return local + "@" + domain
}

// Token возвращает заглушку для токена. Пустой токен остаётся пустым,
// чтобы в логах было видно "токена нет", а не "токен скрыт".
func Token(tok string) string {
	if tok == "" {
		return ""
	}

	return "[REDACTED_TOKEN]"
}

// Password возвращает литерал-заглушку для пароля в логах.
func Password() string { return "[REDACTED_PASSWORD]" }

// sensitiveHeaders — заголовки, значения которых никогда не пишутся в лог.
var sensitiveHeaders = map[string]struct{}{
	"Authorization":       {},
	"Proxy-Authorization": {},
	"Cookie":              {},
	"Set-Cookie":          {},
}

// Headers возвращает копию заголовков, пригодную для логирования:
// значения чувствительных заголовков заменены схемой + заглушкой
// ("Bearer [REDACTED_TOKEN]").
func Headers(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, vs := range h {
		ck := http.CanonicalHeaderKey(k)
		if _, ok := sensitiveHeaders[ck]; !ok {
			out[ck] = append([]string(nil), vs...)
			continue
		}

		masked := make([]string, 0, len(vs))
		for _, v := range vs {
			masked = append(masked, authValue(v))
		}
		out[ck] = masked
	}

	return out
}

func authValue(v string) string {
	if scheme, _, ok := strings.Cut(v, " "); ok && scheme != "" {
		return scheme + " " + Token("x")
	}

	return Token(v)
}
